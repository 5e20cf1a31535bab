package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/asticode/go-astiav"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel in 20 ms
	frameBytes = frameSize * channels * 2
)

// PCMStreamer decodes a local media file into interleaved s16le stereo PCM
// at 48 kHz, readable from Stdout.
type PCMStreamer struct {
	fc       *astiav.FormatContext
	stream   *astiav.Stream
	decCtx   *astiav.CodecContext
	swr      *astiav.SoftwareResampleContext
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame

	start   int   // seconds
	limit   int64 // bytes of PCM to emit, 0 for no limit
	written int64

	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	runErr    error
}

// errWindowEnd ends decoding once the requested end point is reached.
var errWindowEnd = errors.New("end of window")

// StartPCMStream opens path and starts decoding it in the background. start
// and end are in seconds; end 0 decodes to the end of the file.
func StartPCMStream(ctx context.Context, path string, start, end int) (*PCMStreamer, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil || codec == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("find best audio stream: %w", err)
		}
		return nil, errors.New("no audio stream found")
	}

	decCtx := astiav.AllocCodecContext(codec)
	if decCtx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc codec context")
	}
	if err := st.CodecParameters().ToCodecContext(decCtx); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	decCtx.SetTimeBase(st.TimeBase())
	if err := decCtx.Open(codec, nil); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	swr := astiav.AllocSoftwareResampleContext()
	srcFrame := astiav.AllocFrame()
	dstFrame := astiav.AllocFrame()
	if swr == nil || srcFrame == nil || dstFrame == nil {
		if swr != nil {
			swr.Free()
		}
		if srcFrame != nil {
			srcFrame.Free()
		}
		if dstFrame != nil {
			dstFrame.Free()
		}
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc resampler")
	}

	pr, pw := io.Pipe()
	runCtx, cancel := context.WithCancel(ctx)
	ps := &PCMStreamer{
		fc:       fc,
		stream:   st,
		decCtx:   decCtx,
		swr:      swr,
		srcFrame: srcFrame,
		dstFrame: dstFrame,
		start:    max(0, start),
		limit:    windowBytes(start, end),
		cancel:   cancel,
		pr:       pr,
		pw:       pw,
		done:     make(chan struct{}),
	}
	go ps.run(runCtx)
	return ps, nil
}

func (s *PCMStreamer) Stdout() io.Reader { return s.pr }

// Err is the decode error that ended the stream early, if any.
func (s *PCMStreamer) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.runErr
}

// Close stops decoding and frees every libav resource.
func (s *PCMStreamer) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.pr.Close()
		<-s.done

		s.srcFrame.Free()
		s.dstFrame.Free()
		s.swr.Free()
		s.decCtx.Free()
		s.fc.CloseInput()
		s.fc.Free()
	})
}

func (s *PCMStreamer) run(ctx context.Context) {
	defer close(s.done)
	s.seek()
	err := s.decode(ctx)
	if errors.Is(err, errWindowEnd) {
		err = nil
	}
	if err != nil && !errors.Is(err, io.ErrClosedPipe) && ctx.Err() == nil {
		slog.Debug("pcm decode stopped", "err", err)
		s.setErr(err)
	}
	_ = s.pw.CloseWithError(err)
}

func (s *PCMStreamer) decode(ctx context.Context) error {
	packet := astiav.AllocPacket()
	defer packet.Free()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		packet.Unref()
		if err := s.fc.ReadFrame(packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				if err := s.decCtx.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
					return fmt.Errorf("flush decoder: %w", err)
				}
				return s.drain()
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if packet.StreamIndex() != s.stream.Index() {
			continue
		}

		if err := s.decCtx.SendPacket(packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("send packet: %w", err)
		}
		if err := s.drain(); err != nil {
			return err
		}
	}
}

// drain writes out every frame the decoder has ready.
func (s *PCMStreamer) drain() error {
	for {
		s.srcFrame.Unref()
		if err := s.decCtx.ReceiveFrame(s.srcFrame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if err := s.convertAndWrite(s.srcFrame); err != nil {
			return err
		}
	}
}

func (s *PCMStreamer) convertAndWrite(src *astiav.Frame) error {
	s.dstFrame.Unref()
	s.dstFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	s.dstFrame.SetSampleRate(sampleRate)
	s.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	s.dstFrame.SetNbSamples(outSamples(src.NbSamples(), src.SampleRate()))
	if err := s.dstFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("dst alloc buffer: %w", err)
	}
	if err := s.swr.ConvertFrame(src, s.dstFrame); err != nil {
		return fmt.Errorf("swr convert: %w", err)
	}
	if s.dstFrame.NbSamples() == 0 {
		return nil
	}
	b, err := s.dstFrame.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	b, last := s.clip(b)
	if _, err := s.pw.Write(b); err != nil {
		return err
	}
	if last {
		return errWindowEnd
	}
	return nil
}

// seek jumps to the start of the window. Failing to seek plays from the
// beginning.
func (s *PCMStreamer) seek() {
	if s.start <= 0 {
		return
	}
	tb := s.stream.TimeBase()
	if tb.Float64() <= 0 {
		return
	}
	ts := int64(float64(s.start) / tb.Float64())
	if err := s.fc.SeekFrame(s.stream.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		slog.Debug("pcm seek failed", "start", s.start, "err", err)
		s.limit = 0
		return
	}
	_ = s.fc.Flush()
}

// clip cuts b at the end of the window and reports whether it was reached.
func (s *PCMStreamer) clip(b []byte) ([]byte, bool) {
	if s.limit <= 0 {
		return b, false
	}
	left := s.limit - s.written
	if int64(len(b)) >= left {
		s.written = s.limit
		return b[:max(0, left)], true
	}
	s.written += int64(len(b))
	return b, false
}

// windowBytes is the PCM size of the [start, end) window, 0 when unbounded.
func windowBytes(start, end int) int64 {
	if end <= 0 || end <= start {
		return 0
	}
	return int64(end-max(0, start)) * sampleRate * channels * 2
}

// outSamples is the room a resampled frame needs, with slack for the
// resampler's internal delay.
func outSamples(n, rate int) int {
	if rate <= 0 {
		rate = sampleRate
	}
	return int(int64(n)*sampleRate/int64(rate)) + 256
}

func (s *PCMStreamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.runErr == nil {
		s.runErr = err
	}
}
