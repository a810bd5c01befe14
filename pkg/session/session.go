package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AlexxIT/go2cam/pkg/convert"
	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/tracker"
	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/rs/zerolog"
)

const DefaultBuffers = 4

type Options struct {
	Log      zerolog.Logger
	Buffers  int
	Importer Importer
	Callback Callback
	// Clock returns shutter timestamps, monotonic wall time by default
	Clock func() time.Duration
}

// Session owns one configured device stream and the capture goroutine
// that fills client buffers from it
type Session struct {
	drv  Driver
	conn io.Closer
	log  zerolog.Logger
	opts Options

	// submitMu blocks new submissions, resultMu blocks result delivery.
	// Config state below is written under both and read under either.
	submitMu sync.Mutex
	resultMu sync.Mutex

	streams   map[int32]*Stream
	prev      *Settings
	pool      []*frame.Mapped
	format    format.StreamFormat
	started   bool
	supported []format.StreamFormat

	tracker *tracker.Tracker
	cache   *tracker.Cache
	frame   *convert.Frame

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	failed error

	closeOnce sync.Once
	done      chan struct{}
}

// Open starts the capture goroutine, conn is released by Close
func Open(drv Driver, conn io.Closer, opts Options) *Session {
	if opts.Buffers <= 0 {
		opts.Buffers = DefaultBuffers
	}
	if opts.Importer == nil {
		opts.Importer = DirectImporter
	}
	if opts.Callback == nil {
		opts.Callback = nopCallback{}
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Duration {
			return time.Duration(time.Now().UnixNano())
		}
	}

	s := &Session{
		drv:     drv,
		conn:    conn,
		log:     opts.Log,
		opts:    opts,
		streams: map[int32]*Stream{},
		tracker: tracker.New(),
		cache:   tracker.NewCache(),
		frame:   convert.NewFrame(),
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.run()

	return s
}

func (s *Session) state() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed != nil {
		return fmt.Errorf("%w: %w", ErrClosed, s.failed)
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Err returns the fault that stopped the session
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Format returns negotiated device format
func (s *Session) Format() format.StreamFormat {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	return s.format
}

func (s *Session) Configure(streams []Stream) ([]HalStream, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	if err := s.state(); err != nil {
		return nil, err
	}

	if err := s.verifyStreams(streams); err != nil {
		s.log.Warn().Err(err).Msg("[session] configure")
		return nil, err
	}

	s.clean(streams)

	sf, err := s.bestFitFormat(streams)
	if err != nil {
		s.log.Warn().Err(err).Msg("[session] can't find format for device")
		return nil, err
	}

	if err = s.configureDriver(sf); err != nil {
		s.log.Error().Err(err).Msgf("[session] configure %s", sf)
		return nil, err
	}

	s.log.Debug().Msgf("[session] configured %s with %d buffers", sf, len(s.pool))

	return s.configureResult(streams), nil
}

func (s *Session) verifyStreams(streams []Stream) error {
	if n := s.tracker.InFlight(); n > 0 {
		return fmt.Errorf("%w: %d", ErrBusy, n)
	}
	if len(streams) == 0 {
		return fmt.Errorf("%w: empty stream configuration", ErrInvalidArgument)
	}

	var inputs, outputs int
	for i := range streams {
		st := &streams[i]

		switch st.Rotation {
		case 0, 90, 270:
		default:
			return fmt.Errorf("%w: stream %d rotation %d", ErrInvalidArgument, st.ID, st.Rotation)
		}

		if st.Type == StreamInput {
			inputs++
		} else {
			outputs++
		}

		// only usage and rotation of existing stream can change
		if old := s.streams[st.ID]; old != nil {
			if old.Type != st.Type || old.Width != st.Width || old.Height != st.Height || old.Format != st.Format {
				return fmt.Errorf("%w: stream %d can't change", ErrInvalidArgument, st.ID)
			}
		}
	}

	if inputs > 1 || outputs < 1 {
		return fmt.Errorf("%w: %d inputs and %d outputs", ErrInvalidArgument, inputs, outputs)
	}

	return nil
}

// clean stops the stream and drops what the new configuration doesn't use
func (s *Session) clean(streams []Stream) {
	if err := s.drv.StreamOff(); err != nil {
		s.log.Warn().Err(err).Msg("[session] stream off")
	}
	s.started = false

	s.releasePool()
	s.format = format.StreamFormat{}

	for id := range s.streams {
		if !hasStream(streams, id) {
			delete(s.streams, id)
			s.cache.Evict(id)
		}
	}

	s.prev = nil
}

func hasStream(streams []Stream, id int32) bool {
	for _, st := range streams {
		if st.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) releasePool() {
	if len(s.pool) == 0 {
		return
	}
	for _, m := range s.pool {
		if err := m.Close(); err != nil {
			s.log.Warn().Err(err).Msg("[session] release buffer")
		}
	}
	s.pool = nil
	if _, _, err := s.drv.RequestBuffers(0); err != nil {
		s.log.Warn().Err(err).Msg("[session] release buffers")
	}
}

// bestFitFormat uses the requested format when all streams share it and the
// device supports it, otherwise the first qualified format of max resolution
func (s *Session) bestFitFormat(streams []Stream) (format.StreamFormat, error) {
	if s.supported == nil {
		catalogue, err := format.Catalogue(s.drv)
		if err != nil {
			return format.StreamFormat{}, err
		}
		s.supported = format.StreamFormats(catalogue)
	}

	var w, h int
	var formats []fourcc.PixelFormat
	for _, st := range streams {
		w = max(w, st.Width)
		h = max(h, st.Height)
		if !containsFormat(formats, st.Format) {
			formats = append(formats, st.Format)
		}
	}

	if len(formats) == 1 {
		if i := format.FindExact(s.supported, formats[0], w, h); i >= 0 {
			return s.supported[i], nil
		}
	}

	qualified := format.Qualified(convert.QualifiedFormats, s.supported)
	i := format.FindByResolution(qualified, w, h)
	if i < 0 {
		return format.StreamFormat{}, fmt.Errorf("%w: no qualified format for %dx%d", ErrInvalidArgument, w, h)
	}

	// every stream is either served directly or converted from yuv420
	sf := qualified[i]
	for i := range streams {
		st := &streams[i]
		if isDirect(st, sf) {
			continue
		}
		if !convert.SupportsConversion(fourcc.YUV420, st.Format) {
			return format.StreamFormat{}, fmt.Errorf("%w: can't convert %s to %s", ErrInvalidArgument, sf, st.Format)
		}
	}
	return sf, nil
}

func containsFormat(items []fourcc.PixelFormat, f fourcc.PixelFormat) bool {
	for _, item := range items {
		if item == f {
			return true
		}
	}
	return false
}

func (s *Session) configureDriver(sf format.StreamFormat) error {
	if err := s.drv.SetFormat(sf); err != nil {
		return err
	}

	n, size, err := s.drv.RequestBuffers(s.opts.Buffers)
	if err != nil {
		return err
	}
	if n == 0 || size == 0 {
		return fmt.Errorf("session: driver gave %d buffers of %d bytes", n, size)
	}

	for i := 0; i < n; i++ {
		fd, err := s.drv.ExportBuffer(i)
		if err != nil {
			s.releasePool()
			return err
		}

		m := frame.NewMapped(fd, size)
		if err = m.Map(); err != nil {
			_ = m.Close()
			s.releasePool()
			return err
		}
		m.SetFormat(sf.Width, sf.Height, sf.Format)

		s.pool = append(s.pool, m)
	}

	s.format = sf

	return nil
}

func (s *Session) configureResult(streams []Stream) []HalStream {
	items := make([]HalStream, 0, len(streams))

	for _, st := range streams {
		hs := HalStream{
			ID:             st.ID,
			OverrideFormat: st.Format,
			MaxBuffers:     len(s.pool),
		}
		if st.Type == StreamOutput {
			st.Usage |= UsageCPUWriteOften
			hs.ProducerUsage = st.Usage
		} else {
			st.Usage |= UsageCPUReadOften
			hs.ConsumerUsage = st.Usage
		}
		st := st
		s.streams[st.ID] = &st
		items = append(items, hs)
	}

	return items
}

// Converted reports if the stream is filled through the conversion pipeline
func (s *Session) Converted(streamID int32) bool {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	st := s.streams[streamID]
	return st != nil && !s.direct(st)
}

func (s *Session) direct(st *Stream) bool {
	return isDirect(st, s.format)
}

func isDirect(st *Stream, sf format.StreamFormat) bool {
	return st.Format == sf.Format && st.Width == sf.Width && st.Height == sf.Height && st.Rotation == 0
}

func (s *Session) Submit(req *Request) error {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if err := s.state(); err != nil {
		return err
	}

	if s.tracker.Tracked(req.FrameNumber) {
		err := fmt.Errorf("%w: frame %d is in flight", ErrInvalidArgument, req.FrameNumber)
		s.log.Warn().Err(err).Msg("[session] submit")
		s.rejectRequest(req)
		return err
	}

	outputs, input, err := s.verifyRequest(req)
	if err != nil {
		s.log.Warn().Err(err).Uint32("frame", req.FrameNumber).Msg("[session] submit")
		s.rejectRequest(req)
		return err
	}

	settings := req.Settings
	if settings != nil {
		s.applyControls(req.FrameNumber, settings)
		s.prev = settings
	} else {
		settings = s.prev
	}

	if !s.started {
		if err = s.start(); err != nil {
			s.rejectRequest(req)
			return err
		}
	}

	err = s.tracker.Track(&tracker.Request{
		FrameNumber: req.FrameNumber,
		Settings:    &captureSettings{settings: settings, timestamp: s.opts.Clock()},
		Input:       input,
		Outputs:     outputs,
	})
	if err != nil {
		return err
	}

	// reprocessing is not supported, input goes back untouched
	if input != nil {
		if id, in, ok := s.tracker.PopNextInput(); ok {
			_ = s.tracker.AddInputResult(id, in)
		}
	}

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()

	return nil
}

func (s *Session) verifyRequest(req *Request) ([]tracker.StreamBuffer, *tracker.StreamBuffer, error) {
	if req.Settings == nil && s.prev == nil {
		return nil, nil, fmt.Errorf("%w: first request without settings", ErrInvalidArgument)
	}
	if len(req.Outputs) == 0 {
		return nil, nil, fmt.Errorf("%w: no output buffers", ErrInvalidArgument)
	}
	if req.Outputs[0].Status != tracker.StatusOK {
		return nil, nil, fmt.Errorf("%w: output buffer status %s", ErrInvalidArgument, req.Outputs[0].Status)
	}

	outputs := make([]tracker.StreamBuffer, 0, len(req.Outputs))
	for i := range req.Outputs {
		b, err := s.importBuffer(&req.Outputs[i])
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, b)
	}

	if req.Input == nil {
		return outputs, nil, nil
	}

	in, err := s.importBuffer(req.Input)
	if err != nil {
		return nil, nil, err
	}
	return outputs, &in, nil
}

func (s *Session) importBuffer(sb *StreamBuffer) (tracker.StreamBuffer, error) {
	b := tracker.StreamBuffer{StreamID: sb.StreamID, BufferID: sb.BufferID, Status: sb.Status}

	st := s.streams[sb.StreamID]
	if st == nil {
		return b, fmt.Errorf("%w: unknown stream %d", ErrInvalidArgument, sb.StreamID)
	}

	if buf, ok := s.cache.Get(sb.StreamID, sb.BufferID); ok {
		b.Buffer = buf
		return b, nil
	}

	if sb.Handle == nil {
		return b, fmt.Errorf("%w: buffer %d of stream %d not imported", ErrInvalidArgument, sb.BufferID, sb.StreamID)
	}

	buf, err := s.opts.Importer.Import(sb.Handle, st)
	if err != nil {
		return b, fmt.Errorf("%w: import buffer %d: %w", ErrInvalidArgument, sb.BufferID, err)
	}
	s.cache.Put(sb.StreamID, sb.BufferID, buf)

	b.Buffer = buf
	return b, nil
}

// rejectRequest resolves a request that was never tracked
func (s *Session) rejectRequest(req *Request) {
	s.opts.Callback.Notify(&Message{Type: MessageError, FrameNumber: req.FrameNumber, Code: ErrorRequest, StreamID: -1})

	res := &CaptureResult{FrameNumber: req.FrameNumber, Settings: req.Settings}
	for _, sb := range req.Outputs {
		res.Outputs = append(res.Outputs, tracker.StreamBuffer{
			StreamID: sb.StreamID, BufferID: sb.BufferID, Status: tracker.StatusError,
		})
	}
	if req.Input != nil {
		res.Input = &tracker.StreamBuffer{
			StreamID: req.Input.StreamID, BufferID: req.Input.BufferID, Status: tracker.StatusError,
		}
	}
	s.opts.Callback.ProcessCaptureResult(res)
}

// applyControls is best effort, a failed control is reported as result error
func (s *Session) applyControls(frameNumber uint32, settings *Settings) {
	for id, value := range settings.Controls {
		applied, err := s.drv.SetControl(id, value)
		if err != nil {
			s.log.Warn().Err(err).Msgf("[session] control 0x%08x", id)
			s.opts.Callback.Notify(&Message{Type: MessageError, FrameNumber: frameNumber, Code: ErrorResult, StreamID: -1})
			continue
		}
		if applied != value {
			s.log.Debug().Msgf("[session] control 0x%08x set to %d instead of %d", id, applied, value)
		}
	}
}

// start turns the stream on and queues the whole pool
func (s *Session) start() error {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	if len(s.pool) == 0 {
		return fmt.Errorf("%w: stream is not configured", ErrInvalidArgument)
	}

	if err := s.drv.StreamOn(); err != nil {
		return err
	}

	for i := range s.pool {
		if err := s.drv.Enqueue(i); err != nil {
			s.log.Debug().Err(err).Msgf("[session] enqueue %d", i)
		}
	}

	s.started = true

	return nil
}

// EvictBuffers drops imported buffers, without ids drops all of the stream
func (s *Session) EvictBuffers(streamID int32, bufferIDs ...uint64) {
	s.cache.Evict(streamID, bufferIDs...)
}

// Flush fails every pending buffer and stops the stream
func (s *Session) Flush() error {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	s.abort()

	err := s.drv.StreamOff()
	s.started = false
	return err
}

func (s *Session) Close() error {
	var err error

	s.closeOnce.Do(func() {
		if err1 := s.Flush(); err1 != nil {
			s.log.Debug().Err(err1).Msg("[session] flush")
		}

		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()

		<-s.done

		s.submitMu.Lock()
		s.resultMu.Lock()
		s.releasePool()
		s.cache.Clear()
		s.streams = map[int32]*Stream{}
		s.prev = nil
		s.resultMu.Unlock()
		s.submitMu.Unlock()

		err = s.conn.Close()

		s.log.Debug().Msg("[session] closed")
	})

	return err
}

type nopCallback struct{}

func (nopCallback) Notify(*Message)                     {}
func (nopCallback) ProcessCaptureResult(*CaptureResult) {}
