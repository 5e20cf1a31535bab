package session

import "context"

type Track struct {
	ID          string
	Title       string
	Ext         string
	Path        string // local media file, owned by every queue entry that shares it
	Duration    int    // seconds
	RequestedBy string

	// Start and End bound the part of the file that is played, in seconds.
	// End 0 plays to the end of the file.
	Start int
	End   int
}

// Link returns the short YouTube link for the track.
func (t Track) Link() string {
	return "https://youtu.be/" + t.ID
}

type PlayerStatus int

const (
	StatusIdle PlayerStatus = iota
	StatusConnecting
	StatusPlaying
	StatusPaused
	StatusDisconnecting
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "idle"
	}
}

// Connection is one live voice connection able to stream local media files.
//
// Play starts streaming the track's file and returns immediately.
// onComplete is called exactly once, from another goroutine, when the track
// ends, fails or is stopped. If Play returns an error onComplete is never
// called.
type Connection interface {
	ChannelID() string
	Play(t Track, onComplete func(err error)) error
	Pause()
	Resume()
	Stop()
	IsPlaying() bool
	IsPaused() bool
	Disconnect(ctx context.Context) error
}

// Connector joins voice channels. When the bot is already connected to
// channelID it returns the existing connection together with
// ErrAlreadyConnected.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// MediaStore owns the downloaded files of every guild.
type MediaStore interface {
	Remove(path string) error
	Purge(guildID string) error
}

// Snapshot is a copy of a session's state for rendering.
type Snapshot struct {
	GuildID   string
	ChannelID string
	Tracks    []Track // Tracks[0] is playing
	Loop      LoopMode
	Status    PlayerStatus
}

func (s Snapshot) Current() (Track, bool) {
	if len(s.Tracks) == 0 {
		return Track{}, false
	}
	return s.Tracks[0], true
}
