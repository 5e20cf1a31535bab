package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/tubebot/internal/session"
)

const DefaultBitrate = 128_000

// Voice joins voice channels through the gateway session and hands out one
// Conn per guild.
type Voice struct {
	dg      *discordgo.Session
	bitrate int64

	mu    sync.Mutex
	conns map[string]*Conn
}

func NewVoice(dg *discordgo.Session, bitrate int64) *Voice {
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	return &Voice{dg: dg, bitrate: bitrate, conns: make(map[string]*Conn)}
}

// Connect joins channelID. If the guild's connection is already in that
// channel it is returned together with session.ErrAlreadyConnected.
func (v *Voice) Connect(ctx context.Context, guildID, channelID string) (session.Connection, error) {
	v.mu.Lock()
	old := v.conns[guildID]
	v.mu.Unlock()

	if old != nil && !old.isClosed() {
		if old.ChannelID() == channelID {
			return old, session.ErrAlreadyConnected
		}
		slog.Info("moving voice connection", "guildID", guildID, "from", old.ChannelID(), "to", channelID)
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := old.Disconnect(dctx); err != nil {
			slog.Warn("leave previous voice channel", "guildID", guildID, "err", err)
		}
		cancel()
	}

	vc, err := v.join(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	c := v.newConn(guildID, voiceSink{vc: vc})
	v.mu.Lock()
	v.conns[guildID] = c
	v.mu.Unlock()
	slog.Info("joined voice", "guildID", guildID, "channelID", channelID)
	return c, nil
}

func (v *Voice) join(ctx context.Context, guildID, channelID string) (*discordgo.VoiceConnection, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := v.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("join voice channel: %w", r.err)
		}
		return r.vc, nil
	case <-ctx.Done():
		go func() {
			// the join may still land; leave right away
			if r := <-ch; r.err == nil && r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func (v *Voice) newConn(guildID string, sink opusSink) *Conn {
	return &Conn{
		guildID: guildID,
		sink:    sink,
		open:    openFile(v.bitrate),
		onClose: v.forget,
	}
}

func (v *Voice) forget(c *Conn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conns[c.guildID] == c {
		delete(v.conns, c.guildID)
	}
}

// Close leaves every voice channel.
func (v *Voice) Close(ctx context.Context) error {
	v.mu.Lock()
	conns := make([]*Conn, 0, len(v.conns))
	for _, c := range v.conns {
		conns = append(conns, c)
	}
	v.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", c.guildID, err))
		}
	}
	return errors.Join(errs...)
}
