package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const disconnectTimeout = 10 * time.Second

type completion struct {
	token uint64
	err   error
}

// Session is the playback state of one guild. It exists from the first
// enqueue until the queue runs dry, the bot is told to leave, or it is
// removed from the voice channel.
type Session struct {
	guildID   string
	channelID string

	mu     sync.Mutex
	queue  Queue
	conn   Connection
	status PlayerStatus
	token  uint64 // identifies the track currently handed to conn
	skips  int    // pending advances requested by Skip
	closed bool

	events chan completion
	done   chan struct{}
}

func newSession(guildID, channelID string) *Session {
	return &Session{
		guildID:   guildID,
		channelID: channelID,
		status:    StatusIdle,
		events:    make(chan completion),
		done:      make(chan struct{}),
	}
}

// Manager owns every guild session and serializes all mutations of a
// session behind its lock. Completions reported by the voice connection are
// processed by a per-session goroutine.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	loops     *Loops
	connector Connector
	store     MediaStore
}

func NewManager(connector Connector, store MediaStore, loops *Loops) *Manager {
	if loops == nil {
		loops = NewLoops()
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		loops:     loops,
		connector: connector,
		store:     store,
	}
}

func (m *Manager) peek(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

// lock returns the live session of guildID with its lock held.
func (m *Manager) lock(guildID string) (*Session, bool) {
	s := m.peek(guildID)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false
	}
	return s, true
}

// Enqueue appends tracks to the guild's queue. When no session exists yet
// one is created, the bot joins channelID and the first track starts; the
// returned bool reports that case.
func (m *Manager) Enqueue(ctx context.Context, guildID, channelID string, tracks ...Track) (bool, error) {
	if len(tracks) == 0 {
		return false, nil
	}
	for {
		m.mu.Lock()
		s, ok := m.sessions[guildID]
		if !ok {
			s = newSession(guildID, channelID)
			m.sessions[guildID] = s
			s.mu.Lock()
			m.mu.Unlock()
			return true, m.start(ctx, s, tracks)
		}
		m.mu.Unlock()

		s.mu.Lock()
		if s.closed {
			// lost a race with teardown; the next pass creates a fresh session
			s.mu.Unlock()
			continue
		}
		s.queue.Append(tracks...)
		s.mu.Unlock()
		slog.Debug("tracks enqueued", "guildID", guildID, "count", len(tracks))
		return false, nil
	}
}

// start connects a fresh session and plays its first track. s.mu must be
// held; it is released on return.
func (m *Manager) start(ctx context.Context, s *Session, tracks []Track) error {
	s.status = StatusConnecting
	s.queue.Append(tracks...)

	conn, err := m.connector.Connect(ctx, s.guildID, s.channelID)
	if errors.Is(err, ErrAlreadyConnected) && conn != nil {
		slog.Debug("reusing voice connection", "guildID", s.guildID, "channelID", s.channelID)
		err = nil
	}
	if err != nil {
		slog.Error("voice connect failed", "guildID", s.guildID, "channelID", s.channelID, "err", err)
		m.teardownLocked(s)
		s.mu.Unlock()
		m.release(s.guildID, nil, false)
		return fmt.Errorf("connect voice: %w", err)
	}
	s.conn = conn
	go m.run(s)

	slog.Info("session started", "guildID", s.guildID, "channelID", s.channelID)
	m.continueLocked(s)
	return nil
}

func (m *Manager) run(s *Session) {
	for {
		select {
		case ev := <-s.events:
			m.handleCompletion(s, ev)
		case <-s.done:
			return
		}
	}
}

func (m *Manager) notifier(s *Session, token uint64) func(error) {
	return func(err error) {
		select {
		case s.events <- completion{token: token, err: err}:
		case <-s.done:
		}
	}
}

func (m *Manager) handleCompletion(s *Session, ev completion) {
	s.mu.Lock()
	if s.closed || ev.token != s.token {
		s.mu.Unlock()
		return
	}

	mode := m.loops.Get(s.guildID)
	advances := 1
	if s.skips > 0 {
		advances = s.skips
		s.skips = 0
		// Single never holds a skipped track; skipping the whole queue under
		// All empties it instead of rotating back to the same head.
		if mode == LoopSingle || (mode == LoopAll && advances >= s.queue.Len()) {
			mode = LoopOff
		}
	}
	if ev.err != nil {
		slog.Warn("playback failed", "guildID", s.guildID, "err", ev.err)
		mode = LoopOff
	}

	var discarded []Track
	for range min(advances, s.queue.Len()) {
		t, _ := s.queue.popHead()
		switch mode {
		case LoopSingle:
			s.queue.pushFront(t)
		case LoopAll:
			s.queue.Append(t)
		default:
			discarded = append(discarded, t)
		}
	}
	m.releaseLocked(s, discarded)
	m.continueLocked(s)
}

// continueLocked plays the head of the queue or, when nothing is left,
// tears the session down. s.mu must be held; it is released on return.
func (m *Manager) continueLocked(s *Session) {
	if m.playHeadLocked(s) {
		s.mu.Unlock()
		return
	}
	conn := m.teardownLocked(s)
	s.mu.Unlock()
	m.release(s.guildID, conn, false)
}

// playHeadLocked hands the head to the connection. Tracks the connection
// refuses are dropped. It reports false once the queue is empty.
func (m *Manager) playHeadLocked(s *Session) bool {
	for {
		head, ok := s.queue.Head()
		if !ok {
			return false
		}
		s.token++
		err := s.conn.Play(head, m.notifier(s, s.token))
		if err == nil {
			s.status = StatusPlaying
			slog.Info("now playing", "guildID", s.guildID, "id", head.ID, "title", head.Title)
			return true
		}
		slog.Warn("could not play track", "guildID", s.guildID, "id", head.ID, "err", err)
		s.queue.popHead()
		m.releaseLocked(s, []Track{head})
	}
}

// releaseLocked deletes the files of tracks no queue entry refers to anymore.
func (m *Manager) releaseLocked(s *Session, tracks []Track) {
	for _, t := range tracks {
		if t.Path == "" || s.queue.References(t.Path) {
			continue
		}
		if err := m.store.Remove(t.Path); err != nil {
			slog.Warn("remove media file", "guildID", s.guildID, "path", t.Path, "err", err)
		}
	}
}

// teardownLocked closes the session and detaches it from the registry. The
// caller finishes the job with release once s.mu is unlocked.
func (m *Manager) teardownLocked(s *Session) Connection {
	s.closed = true
	s.status = StatusDisconnecting
	close(s.done)

	dropped := s.queue.tracks
	s.queue = Queue{}
	m.releaseLocked(s, dropped)

	conn := s.conn
	s.conn = nil

	m.mu.Lock()
	if m.sessions[s.guildID] == s {
		delete(m.sessions, s.guildID)
	}
	m.mu.Unlock()
	m.loops.Reset(s.guildID)
	return conn
}

// release leaves the voice channel and purges the guild's media directory.
// Without force the connection is left alone while it is still streaming.
func (m *Manager) release(guildID string, conn Connection, force bool) {
	if conn != nil {
		if force {
			conn.Stop()
		}
		if force || !conn.IsPlaying() {
			ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			if err := conn.Disconnect(ctx); err != nil {
				slog.Warn("voice disconnect", "guildID", guildID, "err", err)
			}
			cancel()
		} else {
			slog.Debug("connection busy, not disconnecting", "guildID", guildID)
		}
	}
	m.purgeIdle(guildID)
	slog.Info("session closed", "guildID", guildID)
}

// purgeIdle removes the guild's media directory unless a new session has
// been started for the guild meanwhile. m.mu is held throughout so no
// session can register while the directory goes away.
func (m *Manager) purgeIdle(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[guildID] != nil {
		slog.Debug("guild has a new session, keeping media", "guildID", guildID)
		return
	}
	if err := m.store.Purge(guildID); err != nil {
		slog.Warn("purge media", "guildID", guildID, "err", err)
	}
}

// Skip stops the current track and advances the queue n times. n is clamped
// to the queue length; the number of skipped tracks is returned.
func (m *Manager) Skip(guildID string, n int) (int, error) {
	s, ok := m.lock(guildID)
	if !ok {
		return 0, ErrNothingPlaying
	}
	if s.queue.Len() == 0 || s.conn == nil {
		s.mu.Unlock()
		return 0, ErrNothingPlaying
	}
	n = min(max(n, 1), s.queue.Len())
	s.skips = min(s.skips+n, s.queue.Len())
	// Stop only cancels; the completion is handled once s.mu is released.
	s.conn.Stop()
	s.mu.Unlock()

	slog.Debug("skip", "guildID", guildID, "count", n)
	return n, nil
}

func (m *Manager) Pause(guildID string) error {
	s, ok := m.lock(guildID)
	if !ok {
		return ErrNothingPlaying
	}
	defer s.mu.Unlock()
	if s.status != StatusPlaying || s.conn == nil {
		return ErrNothingPlaying
	}
	s.conn.Pause()
	s.status = StatusPaused
	return nil
}

func (m *Manager) Resume(guildID string) error {
	s, ok := m.lock(guildID)
	if !ok {
		return ErrNotPaused
	}
	defer s.mu.Unlock()
	if s.status != StatusPaused || s.conn == nil {
		return ErrNotPaused
	}
	s.conn.Resume()
	s.status = StatusPlaying
	return nil
}

// RemoveAt drops the pending track at pos.
func (m *Manager) RemoveAt(guildID string, pos int) (Track, error) {
	s, ok := m.lock(guildID)
	if !ok {
		return Track{}, ErrNothingPlaying
	}
	defer s.mu.Unlock()
	t, err := s.queue.RemoveAt(pos)
	if err != nil {
		return Track{}, err
	}
	m.releaseLocked(s, []Track{t})
	return t, nil
}

func (m *Manager) Move(guildID string, from, to int) (Track, error) {
	s, ok := m.lock(guildID)
	if !ok {
		return Track{}, ErrNothingPlaying
	}
	defer s.mu.Unlock()
	return s.queue.Move(from, to)
}

func (m *Manager) Shuffle(guildID string) error {
	s, ok := m.lock(guildID)
	if !ok {
		return ErrNothingPlaying
	}
	defer s.mu.Unlock()
	return s.queue.Shuffle()
}

// Clear drops every pending track and returns how many were removed.
func (m *Manager) Clear(guildID string) (int, error) {
	s, ok := m.lock(guildID)
	if !ok {
		return 0, ErrNothingPlaying
	}
	defer s.mu.Unlock()
	removed := s.queue.Clear()
	m.releaseLocked(s, removed)
	return len(removed), nil
}

// SetLoop parses raw and stores it as the guild's loop mode.
func (m *Manager) SetLoop(guildID, raw string) (LoopMode, error) {
	mode, err := ParseLoopMode(raw)
	if err != nil {
		return LoopOff, err
	}
	m.loops.Set(guildID, mode)
	return mode, nil
}

func (m *Manager) Loop(guildID string) LoopMode {
	return m.loops.Get(guildID)
}

// Exit stops playback, leaves the voice channel and discards the queue.
// Calling it without a session still purges the guild's media and reports
// ErrNotConnected.
func (m *Manager) Exit(guildID string) error {
	s, ok := m.lock(guildID)
	if !ok {
		m.loops.Reset(guildID)
		m.purgeIdle(guildID)
		return ErrNotConnected
	}
	conn := m.teardownLocked(s)
	s.mu.Unlock()
	m.release(guildID, conn, true)
	return nil
}

// HandleVoiceLeft reacts to the bot being removed from voice by someone
// else. Without a session it only purges leftover media.
func (m *Manager) HandleVoiceLeft(guildID string) {
	s, ok := m.lock(guildID)
	if !ok {
		m.purgeIdle(guildID)
		return
	}
	slog.Info("bot left voice", "guildID", guildID)
	conn := m.teardownLocked(s)
	s.mu.Unlock()
	m.release(guildID, conn, true)
}

// Snapshot copies the guild's session state.
func (m *Manager) Snapshot(guildID string) (Snapshot, bool) {
	s, ok := m.lock(guildID)
	if !ok {
		return Snapshot{}, false
	}
	defer s.mu.Unlock()
	return Snapshot{
		GuildID:   s.guildID,
		ChannelID: s.voiceChannelLocked(),
		Tracks:    s.queue.Tracks(),
		Loop:      m.loops.Get(guildID),
		Status:    s.status,
	}, true
}

// BotChannel returns the voice channel the bot is in for the guild's
// session. It follows the connection, so a bot moved by a moderator reports
// its new channel.
func (m *Manager) BotChannel(guildID string) (string, bool) {
	s, ok := m.lock(guildID)
	if !ok {
		return "", false
	}
	defer s.mu.Unlock()
	return s.voiceChannelLocked(), true
}

func (s *Session) voiceChannelLocked() string {
	if s.conn != nil {
		if ch := s.conn.ChannelID(); ch != "" {
			return ch
		}
	}
	return s.channelID
}

// Active reports how many guilds currently have a session.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
