package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/tubebot/internal/session"
)

const (
	bufferPackets = 100 // ~2s of audio
	readyTimeout  = 5 * time.Second
	sendTimeout   = 200 * time.Millisecond
	maxDropped    = 50
)

var ErrClosed = errors.New("voice connection closed")

// opusSink is where paced packets go; a discordgo voice connection in
// production.
type opusSink interface {
	ready() bool
	send(ctx context.Context, pkt []byte) error
	speaking(on bool)
	disconnect() error
	channelID() string
}

type playback struct {
	cancel context.CancelFunc
	sent   chan struct{} // closed once the sender no longer touches the sink
}

// Conn streams local media files into one guild's voice connection.
type Conn struct {
	guildID string
	sink    opusSink
	open    func(ctx context.Context, t session.Track) (packetSource, error)
	onClose func(*Conn)

	mu       sync.Mutex
	cur      *playback
	resumeCh chan struct{} // non-nil while paused
	closed   bool
}

func (c *Conn) ChannelID() string { return c.sink.channelID() }

// Play opens the track's file and starts streaming it. onComplete runs once
// the track ends, fails or is stopped.
func (c *Conn) Play(t session.Track, onComplete func(err error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev := c.cur
	c.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.sent
	}

	ctx, cancel := context.WithCancel(context.Background())
	src, err := c.open(ctx, t)
	if err != nil {
		cancel()
		return fmt.Errorf("open %s: %w", t.Path, err)
	}

	pb := &playback{cancel: cancel, sent: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		src.Close()
		return ErrClosed
	}
	c.cur = pb
	c.resumeCh = nil
	c.mu.Unlock()

	go c.run(ctx, pb, src, onComplete)
	return nil
}

func (c *Conn) run(ctx context.Context, pb *playback, src packetSource, onComplete func(error)) {
	err := c.stream(ctx, src)
	src.Close()
	if err == nil {
		err = src.Err()
	}

	c.mu.Lock()
	if c.cur == pb {
		c.cur = nil
		c.resumeCh = nil
	}
	c.mu.Unlock()
	close(pb.sent)

	if ctx.Err() != nil {
		// stopped on purpose
		err = nil
	}
	pb.cancel()
	if err != nil {
		slog.Warn("playback error", "guildID", c.guildID, "err", err)
	}
	onComplete(err)
}

// stream sends the source's packets to the sink every 20 ms until the source
// runs dry or ctx ends.
func (c *Conn) stream(ctx context.Context, src packetSource) error {
	deadline := time.Now().Add(readyTimeout)
	for !c.sink.ready() {
		if time.Now().After(deadline) {
			return errors.New("voice connection not ready")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}

	buf := newOpusBuffer(bufferPackets)
	produced := make(chan struct{})
	defer func() {
		buf.Close()
		<-produced
	}()
	go func() {
		defer close(produced)
		defer buf.MarkEOS()
		for {
			pkt, err := src.Next()
			if err != nil {
				return
			}
			if !buf.Push(pkt) {
				return
			}
		}
	}()

	c.sink.speaking(true)
	defer c.sink.speaking(false)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	dropped := 0
	for {
		if err := c.waitResumed(ctx); err != nil {
			return nil
		}
		pkt, ok := buf.Pop()
		if !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := c.sink.send(ctx, pkt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			dropped++
			if dropped >= maxDropped {
				return fmt.Errorf("voice send stalled: %w", err)
			}
			continue
		}
		dropped = 0
	}
}

// waitResumed blocks while the connection is paused.
func (c *Conn) waitResumed(ctx context.Context) error {
	c.mu.Lock()
	ch := c.resumeCh
	c.mu.Unlock()
	if ch == nil {
		return ctx.Err()
	}
	c.sink.speaking(false)
	select {
	case <-ch:
		c.sink.speaking(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil && c.resumeCh == nil {
		c.resumeCh = make(chan struct{})
	}
}

func (c *Conn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeCh != nil {
		close(c.resumeCh)
		c.resumeCh = nil
	}
}

// Stop ends the current track. Its completion callback still runs.
func (c *Conn) Stop() {
	c.mu.Lock()
	pb := c.cur
	c.mu.Unlock()
	if pb != nil {
		pb.cancel()
	}
}

func (c *Conn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && c.resumeCh == nil
}

func (c *Conn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && c.resumeCh != nil
}

// Disconnect stops playback and leaves the voice channel.
func (c *Conn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pb := c.cur
	c.mu.Unlock()

	if pb != nil {
		pb.cancel()
		select {
		case <-pb.sent:
		case <-ctx.Done():
		}
	}
	if c.onClose != nil {
		c.onClose(c)
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("voice disconnect panic: %v", r)
			}
		}()
		errCh <- c.sink.disconnect()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// packetSource yields encoded Opus packets one at a time.
type packetSource interface {
	Next() ([]byte, error)
	Err() error
	Close()
}

// fileSource decodes and encodes a local file on demand.
type fileSource struct {
	pcm     *PCMStreamer
	enc     *Encoder
	r       *bufio.Reader
	frame   []byte
	pending [][]byte
	flushed bool
}

func openFile(bitrate int64) func(ctx context.Context, t session.Track) (packetSource, error) {
	return func(ctx context.Context, t session.Track) (packetSource, error) {
		pcm, err := StartPCMStream(ctx, t.Path, t.Start, t.End)
		if err != nil {
			return nil, err
		}
		enc, err := NewEncoder(bitrate)
		if err != nil {
			pcm.Close()
			return nil, err
		}
		return &fileSource{
			pcm:   pcm,
			enc:   enc,
			r:     bufio.NewReaderSize(pcm.Stdout(), 64*1024),
			frame: make([]byte, frameBytes),
		}, nil
	}
}

func (f *fileSource) collect(pkt []byte) error {
	f.pending = append(f.pending, append([]byte(nil), pkt...))
	return nil
}

func (f *fileSource) Next() ([]byte, error) {
	for len(f.pending) == 0 {
		if f.flushed {
			return nil, io.EOF
		}
		n, err := io.ReadFull(f.r, f.frame)
		switch {
		case err == nil:
			if err := f.enc.EncodeFrame(f.frame, f.collect); err != nil {
				return nil, err
			}
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			if n > 0 {
				// pad the last partial frame with silence
				clear(f.frame[n:])
				if err := f.enc.EncodeFrame(f.frame, f.collect); err != nil {
					return nil, err
				}
			}
			if err := f.enc.Flush(f.collect); err != nil {
				return nil, err
			}
			f.flushed = true
		default:
			return nil, err
		}
	}
	pkt := f.pending[0]
	f.pending = f.pending[1:]
	return pkt, nil
}

func (f *fileSource) Err() error { return f.pcm.Err() }

func (f *fileSource) Close() {
	f.pcm.Close()
	f.enc.Close()
}

// voiceSink adapts a discordgo voice connection.
type voiceSink struct {
	vc *discordgo.VoiceConnection
}

func (s voiceSink) ready() bool {
	s.vc.RLock()
	defer s.vc.RUnlock()
	return s.vc.Ready && s.vc.OpusSend != nil
}

func (s voiceSink) send(ctx context.Context, pkt []byte) error {
	select {
	case s.vc.OpusSend <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sendTimeout):
		return errors.New("opus send timeout")
	}
}

func (s voiceSink) speaking(on bool) {
	_ = s.vc.Speaking(on)
}

func (s voiceSink) disconnect() error {
	_ = s.vc.Speaking(false)
	return s.vc.Disconnect()
}

func (s voiceSink) channelID() string {
	s.vc.RLock()
	defer s.vc.RUnlock()
	return s.vc.ChannelID
}
