package audio

import "slices"

// Queue is an ordered list of tracks. The head, when present, is the track
// currently rendering; only playback ending removes it.
type Queue struct {
	tracks []Track
}

// Len returns the number of queued tracks, including the head.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Head returns the track at position 0.
func (q *Queue) Head() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	return q.tracks[0], true
}

// Append adds a track to the tail and reports whether the queue was empty before.
func (q *Queue) Append(t Track) bool {
	wasEmpty := len(q.tracks) == 0
	q.tracks = append(q.tracks, t)
	return wasEmpty
}

// PopHead removes and returns the head.
func (q *Queue) PopHead() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	head := q.tracks[0]
	q.tracks[0] = Track{}
	q.tracks = q.tracks[1:]
	return head, true
}

// TruncateToHead drops everything behind the head and returns how many tracks were removed.
func (q *Queue) TruncateToHead() int {
	if len(q.tracks) <= 1 {
		return 0
	}
	removed := len(q.tracks) - 1
	q.tracks = q.tracks[:1:1]
	return removed
}

// Snapshot returns a copy of the queue contents.
func (q *Queue) Snapshot() []Track {
	return slices.Clone(q.tracks)
}
