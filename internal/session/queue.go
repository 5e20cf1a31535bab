package session

import (
	"slices"

	"github.com/sonroyaalmerol/tubebot/internal/utils"
)

// Queue is the ordered track list of one guild. Index 0 is the track bound
// to the voice connection; positions handed in by users address the pending
// tracks behind it, starting at 1.
type Queue struct {
	tracks []Track
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

func (q *Queue) Head() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	return q.tracks[0], true
}

// Tracks returns a copy of the whole queue, head included.
func (q *Queue) Tracks() []Track {
	return slices.Clone(q.tracks)
}

func (q *Queue) Append(t ...Track) {
	q.tracks = append(q.tracks, t...)
}

func (q *Queue) pushFront(t Track) {
	q.tracks = slices.Insert(q.tracks, 0, t)
}

func (q *Queue) popHead() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	t := q.tracks[0]
	q.tracks = slices.Delete(q.tracks, 0, 1)
	return t, true
}

// pending is the number of tracks behind the head.
func (q *Queue) pending() int {
	return max(0, len(q.tracks)-1)
}

func (q *Queue) RemoveAt(pos int) (Track, error) {
	if pos < 1 || pos > q.pending() {
		return Track{}, ErrInvalidPosition
	}
	t := q.tracks[pos]
	q.tracks = slices.Delete(q.tracks, pos, pos+1)
	return t, nil
}

// Move takes the track at from and reinserts it so it ends up at to.
func (q *Queue) Move(from, to int) (Track, error) {
	n := q.pending()
	if from < 1 || from > n || to < 1 || to > n {
		return Track{}, ErrInvalidPosition
	}
	if from == to {
		return q.tracks[from], ErrAlreadyInPosition
	}
	t := q.tracks[from]
	q.tracks = slices.Delete(q.tracks, from, from+1)
	q.tracks = slices.Insert(q.tracks, to, t)
	return t, nil
}

// Shuffle permutes the pending tracks. The head never moves.
func (q *Queue) Shuffle() error {
	if len(q.tracks) <= 1 {
		return ErrNotEnough
	}
	utils.ShuffleSlice(q.tracks[1:])
	return nil
}

// Clear drops every pending track and returns them.
func (q *Queue) Clear() []Track {
	if len(q.tracks) <= 1 {
		return nil
	}
	removed := slices.Clone(q.tracks[1:])
	q.tracks = q.tracks[:1:1]
	return removed
}

// References reports whether any entry still points at path.
func (q *Queue) References(path string) bool {
	return slices.ContainsFunc(q.tracks, func(t Track) bool { return t.Path == path })
}
