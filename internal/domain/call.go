package domain

// MediaKind tells the callee what the caller wants to open.
// The relay carries it verbatim; the media path itself is client-side.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// NormalizeMediaKind maps unknown or empty values to video, matching the
// behavior clients already rely on.
func NormalizeMediaKind(s string) MediaKind {
	if MediaKind(s) == MediaAudio {
		return MediaAudio
	}
	return MediaVideo
}
