package session

import (
	"errors"
	"slices"
	"testing"
)

func ids(q *Queue) []string {
	var out []string
	for _, t := range q.Tracks() {
		out = append(out, t.ID)
	}
	return out
}

func newQueue(idList ...string) *Queue {
	q := &Queue{}
	for _, id := range idList {
		q.Append(track(id))
	}
	return q
}

func TestQueueMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		wantErr  error
	}{
		{name: "forward", from: 1, to: 3, want: []string{"h", "b", "c", "a", "d"}},
		{name: "backward", from: 4, to: 1, want: []string{"h", "d", "a", "b", "c"}},
		{name: "neighbour", from: 2, to: 3, want: []string{"h", "a", "c", "b", "d"}},
		{name: "same position", from: 2, to: 2, want: []string{"h", "a", "b", "c", "d"}, wantErr: ErrAlreadyInPosition},
		{name: "head is not movable", from: 0, to: 2, want: []string{"h", "a", "b", "c", "d"}, wantErr: ErrInvalidPosition},
		{name: "to out of range", from: 1, to: 5, want: []string{"h", "a", "b", "c", "d"}, wantErr: ErrInvalidPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue("h", "a", "b", "c", "d")
			_, err := q.Move(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := ids(q); !slices.Equal(got, tt.want) {
				t.Fatalf("queue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueueShufflePinsHead(t *testing.T) {
	idList := []string{"h", "a", "b", "c", "d", "e", "f", "g", "i", "j"}
	q := newQueue(idList...)
	for range 20 {
		if err := q.Shuffle(); err != nil {
			t.Fatal(err)
		}
		got := ids(q)
		if got[0] != "h" {
			t.Fatalf("head moved: %v", got)
		}
		sorted := slices.Clone(got)
		slices.Sort(sorted)
		want := slices.Clone(idList)
		slices.Sort(want)
		if !slices.Equal(sorted, want) {
			t.Fatalf("shuffle changed contents: %v", got)
		}
	}

	if err := newQueue("h").Shuffle(); !errors.Is(err, ErrNotEnough) {
		t.Fatalf("single track shuffle: %v", err)
	}
	if err := newQueue().Shuffle(); !errors.Is(err, ErrNotEnough) {
		t.Fatalf("empty shuffle: %v", err)
	}
}

func TestQueueRemoveAtBounds(t *testing.T) {
	q := newQueue("h", "a")
	for _, pos := range []int{0, 2, -3} {
		if _, err := q.RemoveAt(pos); !errors.Is(err, ErrInvalidPosition) {
			t.Fatalf("RemoveAt(%d): %v", pos, err)
		}
	}
	if tr, err := q.RemoveAt(1); err != nil || tr.ID != "a" {
		t.Fatalf("RemoveAt(1) = %v, %v", tr.ID, err)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d", q.Len())
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LoopMode
		wantErr bool
	}{
		{"off", LoopOff, false},
		{"Single", LoopSingle, false},
		{" ALL ", LoopAll, false},
		{"repeat", LoopOff, true},
		{"", LoopOff, true},
	}
	for _, tt := range tests {
		got, err := ParseLoopMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
