package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ameles/Duet/internal/core"
	"github.com/ameles/Duet/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	reject bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// events decodes every received frame into a generic map.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) (map[string]any, bool) {
	t.Helper()
	var found map[string]any
	ok := false
	for _, e := range c.events(t) {
		if e["type"] == typ {
			found = e
			ok = true
		}
	}
	return found, ok
}

func (c *fakeConn) countOfType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, e := range c.events(t) {
		if e["type"] == typ {
			n++
		}
	}
	return n
}

func newRelay() *Relay {
	return NewRelay(NewRoster(), NewPairs(), NewDirectory())
}

func register(r *Relay, sid core.SessionID, id, name string) *fakeConn {
	conn := &fakeConn{}
	r.Register(sid, &domain.User{ID: domain.UserID(id), Username: name}, conn)
	return conn
}

func TestRelay_InviteOfflineCallee(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")

	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "ghost", nil, domain.MediaVideo)

	ev, ok := aConn.lastOfType(t, EventUserUnavailable)
	if !ok {
		t.Fatalf("caller must be told the callee is offline")
	}
	if ev["message"] == "" {
		t.Fatalf("unavailable reply should carry a message")
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("ghost") {
		t.Fatalf("a failed invite must not touch the registry")
	}
}

func TestRelay_InviteNeverPairs(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	bConn := register(r, "sid-b", "b", "Bob")

	sig := json.RawMessage(`{"sdp":"offer-from-a"}`)
	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice", Email: "a@x.io"}, "b", sig, domain.MediaAudio)

	ev, ok := bConn.lastOfType(t, EventIncomingCall)
	if !ok {
		t.Fatalf("idle callee must receive the forwarded invite")
	}
	if ev["from"] != "a" || ev["name"] != "Alice" {
		t.Fatalf("forwarded invite must carry the caller identity, got %v", ev)
	}
	if ev["callType"] != "audio" {
		t.Fatalf("media kind lost in transit: %v", ev["callType"])
	}
	if got, _ := json.Marshal(ev["signal"]); string(got) != string(sig) {
		t.Fatalf("negotiation payload must be forwarded verbatim, got %s", got)
	}

	// Ringing is not busy: only answer installs a pairing.
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("invite must not mutate the call registry")
	}
}

func TestRelay_AnswerActivatesCall(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	sig := json.RawMessage(`{"sdp":"answer-from-b"}`)
	r.Answer("b", "a", sig, domain.MediaAudio)

	ev, ok := aConn.lastOfType(t, EventCallAccepted)
	if !ok {
		t.Fatalf("caller must receive callAccepted")
	}
	if ev["from"] != "b" {
		t.Fatalf("acceptance must name the answerer, got %v", ev["from"])
	}
	if !r.Pairs.IsBusy("a") || !r.Pairs.IsBusy("b") {
		t.Fatalf("answer is the single point where a call becomes active")
	}
}

func TestRelay_BusyCalleeRefusesThirdParty(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	bConn := register(r, "sid-b", "b", "Bob")
	cConn := register(r, "sid-c", "c", "Cleo")

	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "b", nil, domain.MediaAudio)
	r.Answer("b", "a", nil, domain.MediaAudio)

	r.Invite(cConn, CallerInfo{ID: "c", Name: "Cleo"}, "b", nil, domain.MediaVideo)

	if _, ok := cConn.lastOfType(t, EventUserBusy); !ok {
		t.Fatalf("third party must be refused with userBusy")
	}
	if bConn.countOfType(t, EventIncomingCall) != 1 {
		t.Fatalf("busy callee must not receive a second forwarded invite")
	}
	ev, ok := bConn.lastOfType(t, EventIncomingWhileBusy)
	if !ok {
		t.Fatalf("busy callee gets an informational notice")
	}
	if ev["from"] != "c" {
		t.Fatalf("notice must name the refused caller, got %v", ev["from"])
	}
	if r.Pairs.IsBusy("c") {
		t.Fatalf("a refused invite must not create state for the caller")
	}
}

func TestRelay_RejectLeavesRegistryUntouched(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "b", nil, domain.MediaVideo)
	r.Reject("a", "Bob", "", domain.MediaVideo)

	ev, ok := aConn.lastOfType(t, EventCallRejected)
	if !ok {
		t.Fatalf("caller must receive callRejected")
	}
	if ev["name"] != "Bob" || ev["callType"] != "video" {
		t.Fatalf("rejection must carry the rejecting identity and media kind, got %v", ev)
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("reject happens before answer, no registry change expected")
	}
}

func TestRelay_EndClearsBothSides(t *testing.T) {
	r := newRelay()
	register(r, "sid-a", "a", "Alice")
	bConn := register(r, "sid-b", "b", "Bob")

	r.Answer("b", "a", nil, domain.MediaAudio)
	r.End("a", "b", "Alice")

	ev, ok := bConn.lastOfType(t, EventCallEnded)
	if !ok {
		t.Fatalf("peer must receive callEnded")
	}
	if ev["name"] != "Alice" {
		t.Fatalf("hang-up must carry the ender's name, got %v", ev["name"])
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("ending a call must clear both registry sides")
	}
}

func TestRelay_DisconnectTearsDownCallAndPresence(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	r.Answer("b", "a", nil, domain.MediaAudio)

	// B's channel drops abruptly mid-call.
	r.Disconnect("sid-b")

	if _, ok := aConn.lastOfType(t, EventCallEnded); !ok {
		t.Fatalf("surviving peer must get a termination notice")
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("disconnect must clear the pairing")
	}
	if _, ok := r.Roster.Lookup("b"); ok {
		t.Fatalf("directory must no longer list b")
	}

	ev, ok := aConn.lastOfType(t, EventOnlineUsers)
	if !ok {
		t.Fatalf("membership broadcast expected after disconnect")
	}
	users, _ := ev["users"].([]any)
	for _, u := range users {
		if m, _ := u.(map[string]any); m["userId"] == "b" {
			t.Fatalf("online-users must exclude the departed user")
		}
	}
	if _, ok := aConn.lastOfType(t, EventDisconnectUser); !ok {
		t.Fatalf("disconnectUser broadcast expected")
	}
}

func TestRelay_DisconnectIsIdempotent(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	r.Answer("b", "a", nil, domain.MediaAudio)
	r.Disconnect("sid-b")
	before := aConn.countOfType(t, EventCallEnded)

	r.Disconnect("sid-b")

	if got := aConn.countOfType(t, EventCallEnded); got != before {
		t.Fatalf("second disconnect must not re-notify the peer")
	}
}

// Lost-message behavior is deliberate: a saturated or dead target channel
// drops the frame, nothing queues behind it and the sender state is not
// disturbed.
func TestRelay_SaturatedTargetDropsSilently(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	bConn := register(r, "sid-b", "b", "Bob")
	bConn.reject = true

	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "b", nil, domain.MediaAudio)

	if n := bConn.countOfType(t, EventIncomingCall); n != 0 {
		t.Fatalf("saturated conn should not have accepted the frame")
	}
	if _, ok := aConn.lastOfType(t, EventUserBusy); ok {
		t.Fatalf("delivery failure is not an admission failure")
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("dropped invite must not leak registry state")
	}
}

func TestRelay_ResolveAcceptsSocketID(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	// Older clients echo back whatever `from` they were handed, which can
	// be a socket id rather than a user id.
	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "sid-b", nil, domain.MediaVideo)

	sess, _ := r.Roster.Lookup("b")
	bConn := sess.Signal().(*fakeConn)
	if _, ok := bConn.lastOfType(t, EventIncomingCall); !ok {
		t.Fatalf("socket-id addressing must still route")
	}
}

// Full walkthrough of a call between idle users with a busy bystander,
// ending in an abrupt drop.
func TestRelay_CallLifecycleScenario(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	bConn := register(r, "sid-b", "b", "Bob")
	cConn := register(r, "sid-c", "c", "Cleo")

	r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "b", json.RawMessage(`{"sdp":"o"}`), domain.MediaAudio)
	inv, ok := bConn.lastOfType(t, EventIncomingCall)
	if !ok || inv["from"] != "a" || inv["callType"] != "audio" {
		t.Fatalf("B should see A's audio invite, got %v", inv)
	}

	r.Answer("b", "a", json.RawMessage(`{"sdp":"ans"}`), domain.MediaAudio)
	if _, ok := aConn.lastOfType(t, EventCallAccepted); !ok {
		t.Fatalf("A should see callAccepted")
	}
	if !r.Pairs.IsBusy("a") || !r.Pairs.IsBusy("b") {
		t.Fatalf("registry should hold A and B")
	}

	r.Invite(cConn, CallerInfo{ID: "c", Name: "Cleo"}, "b", nil, domain.MediaVideo)
	if _, ok := cConn.lastOfType(t, EventUserBusy); !ok {
		t.Fatalf("C should be refused")
	}
	if _, ok := bConn.lastOfType(t, EventIncomingWhileBusy); !ok {
		t.Fatalf("B should be informed")
	}

	r.End("a", "b", "Alice")
	if _, ok := bConn.lastOfType(t, EventCallEnded); !ok {
		t.Fatalf("B should see callEnded")
	}
	if r.Pairs.IsBusy("a") || r.Pairs.IsBusy("b") {
		t.Fatalf("registry should be empty for A and B")
	}

	r.Disconnect("sid-b")
	if _, ok := r.Roster.Lookup("b"); ok {
		t.Fatalf("B must leave the directory on disconnect")
	}
}

// Teardown racing an in-flight transition for the same user must not
// deadlock or corrupt the shared maps.
func TestRelay_DisconnectRacesInvite(t *testing.T) {
	r := newRelay()
	aConn := register(r, "sid-a", "a", "Alice")
	register(r, "sid-b", "b", "Bob")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Invite(aConn, CallerInfo{ID: "a", Name: "Alice"}, "b", nil, domain.MediaAudio)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Disconnect("sid-b")
			register(r, "sid-b", "b", "Bob")
		}
	}()
	wg.Wait()
}
