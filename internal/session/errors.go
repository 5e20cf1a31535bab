package session

import "errors"

var (
	ErrInvalidPosition   = errors.New("invalid position")
	ErrAlreadyInPosition = errors.New("track is already in the specified position")
	ErrInvalidMode       = errors.New("invalid loop mode")

	ErrNothingPlaying = errors.New("nothing is playing")
	ErrNotPaused      = errors.New("playback is not paused")
	ErrNotEnough      = errors.New("not enough tracks in the queue")
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNoVoiceChannel = errors.New("caller is not in a voice channel")
	ErrWrongChannel   = errors.New("caller is not in the bot's voice channel")

	ErrDownload         = errors.New("download failed")
	ErrAlreadyConnected = errors.New("already connected to this voice channel")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUserInput
	KindPrecondition
	KindDownload
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user input"
	case KindPrecondition:
		return "precondition"
	case KindDownload:
		return "download"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Errors outside the session vocabulary are
// KindUnknown and belong to the caller's supervisor.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidPosition),
		errors.Is(err, ErrAlreadyInPosition),
		errors.Is(err, ErrInvalidMode):
		return KindUserInput
	case errors.Is(err, ErrNothingPlaying),
		errors.Is(err, ErrNotPaused),
		errors.Is(err, ErrNotEnough),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrNoVoiceChannel),
		errors.Is(err, ErrWrongChannel):
		return KindPrecondition
	case errors.Is(err, ErrDownload):
		return KindDownload
	case errors.Is(err, ErrAlreadyConnected):
		return KindTransport
	}
	return KindUnknown
}
