package app

import (
	"sort"
	"sync"

	"github.com/ameles/Duet/internal/domain"
)

// Directory collects the user profiles this process has seen, backing the
// contact-list API. It is not presence: entries survive disconnects for the
// life of the process. Account persistence stays upstream.
type Directory struct {
	mu    sync.RWMutex
	users map[domain.UserID]domain.User
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[domain.UserID]domain.User)}
}

// Record upserts a profile. Empty fields never erase known ones, since
// join payloads carry less than invite payloads do.
func (d *Directory) Record(u domain.User) {
	if u.ID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.users[u.ID]
	cur.ID = u.ID
	if u.Username != "" {
		cur.Username = u.Username
	}
	if u.Email != "" {
		cur.Email = u.Email
	}
	if u.ProfilePic != "" {
		cur.ProfilePic = u.ProfilePic
	}
	d.users[u.ID] = cur
}

// List returns all known profiles, ordered by username for stable output.
func (d *Directory) List() []domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out
}
