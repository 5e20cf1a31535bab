package session

import (
	"strings"
	"sync"
)

type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopSingle
	LoopAll
)

func (m LoopMode) String() string {
	switch m {
	case LoopSingle:
		return "single"
	case LoopAll:
		return "all"
	default:
		return "off"
	}
}

// ParseLoopMode accepts off, single or all in any case.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LoopOff, nil
	case "single":
		return LoopSingle, nil
	case "all":
		return LoopAll, nil
	}
	return LoopOff, ErrInvalidMode
}

// Loops holds the loop mode of every guild. A guild without an entry is Off.
type Loops struct {
	mu    sync.Mutex
	modes map[string]LoopMode
}

func NewLoops() *Loops {
	return &Loops{modes: make(map[string]LoopMode)}
}

func (l *Loops) Get(guildID string) LoopMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modes[guildID]
}

func (l *Loops) Set(guildID string, mode LoopMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mode == LoopOff {
		delete(l.modes, guildID)
		return
	}
	l.modes[guildID] = mode
}

func (l *Loops) Reset(guildID string) {
	l.Set(guildID, LoopOff)
}
