package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlexxIT/go2cam/pkg/convert"
	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/tracker"
	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
)

const pollInterval = time.Millisecond

// run fills pending output buffers with device frames until Close
func (s *Session) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for !s.closed && s.failed == nil && !s.tracker.Active() {
			s.cond.Wait()
		}
		stop := s.closed || s.failed != nil
		s.mu.Unlock()

		if stop {
			return
		}

		if err := s.capture(); err != nil {
			if errors.Is(err, device.ErrNotReady) {
				time.Sleep(pollInterval)
				continue
			}
			s.fail(err)
		}
	}
}

func (s *Session) capture() error {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()

	if !s.started {
		return device.ErrNotReady
	}

	buf, err := s.drv.Dequeue()
	if err != nil {
		return err
	}

	if buf.Index < 0 || buf.Index >= len(s.pool) {
		return fmt.Errorf("session: dequeued buffer %d of %d", buf.Index, len(s.pool))
	}

	src := s.pool[buf.Index]
	if err = src.Fill(s.format.Width, s.format.Height, s.format.Format, buf.BytesUsed); err != nil {
		s.requeue(buf.Index)
		return err
	}

	id, out, ok := s.tracker.PopNextOutput()
	if !ok {
		s.log.Trace().Msgf("[session] drop frame %d", buf.Sequence)
		s.requeue(buf.Index)
		return nil
	}

	var settings *Settings
	if v, _, err := s.tracker.Settings(id); err == nil {
		if cs, ok := v.(*captureSettings); ok {
			settings = cs.settings
		}
	}

	if err = s.fill(src, &out, settings); err != nil {
		s.log.Warn().Err(err).Uint32("frame", id).Int32("stream", out.StreamID).Msg("[session] convert")
		out.Status = tracker.StatusError
	} else {
		out.Status = tracker.StatusOK
	}

	s.requeue(buf.Index)

	if err = s.tracker.AddResult(id, out); err != nil {
		return err
	}

	if res, ok := s.tracker.Complete(id); ok {
		s.deliver(res, false)
	}

	return nil
}

func (s *Session) requeue(index int) {
	if err := s.drv.Enqueue(index); err != nil {
		s.log.Debug().Err(err).Msgf("[session] enqueue %d", index)
	}
}

// fill writes the captured frame to the client buffer of the stream
func (s *Session) fill(src *frame.Mapped, out *tracker.StreamBuffer, settings *Settings) error {
	st := s.streams[out.StreamID]
	if st == nil {
		return fmt.Errorf("%w: unknown stream %d", ErrInvalidArgument, out.StreamID)
	}

	dst := out.Buffer
	if err := dst.Map(); err != nil {
		return err
	}
	defer func() {
		if err := dst.Unmap(); err != nil {
			s.log.Debug().Err(err).Msg("[session] unmap")
		}
	}()

	dst.SetFormat(st.Width, st.Height, st.Format)

	if s.direct(st) {
		return convert.Copy(src, dst)
	}

	if err := s.frame.SetSource(src, st.Rotation); err != nil {
		return err
	}

	var cs *convert.Settings
	if settings != nil {
		cs = &settings.Settings
	}
	return s.frame.Convert(cs, dst)
}

// deliver sends shutter or request error, buffer errors and the result
func (s *Session) deliver(res *tracker.Result, aborted bool) {
	var settings *Settings
	var timestamp time.Duration
	if cs, ok := res.Settings.(*captureSettings); ok {
		settings = cs.settings
		timestamp = cs.timestamp
	}

	cb := s.opts.Callback

	if aborted && res.Errors() == len(res.Outputs) {
		cb.Notify(&Message{Type: MessageError, FrameNumber: res.FrameNumber, Code: ErrorRequest, StreamID: -1})
	} else {
		cb.Notify(&Message{Type: MessageShutter, FrameNumber: res.FrameNumber, Timestamp: timestamp})
		for _, b := range res.Outputs {
			if b.Status != tracker.StatusOK {
				cb.Notify(&Message{Type: MessageError, FrameNumber: res.FrameNumber, Code: ErrorBuffer, StreamID: b.StreamID})
			}
		}
	}

	cr := &CaptureResult{
		FrameNumber:   res.FrameNumber,
		Settings:      settings,
		Timestamp:     timestamp,
		PartialResult: res.PartialResult,
		Input:         res.Input,
		Outputs:       make([]tracker.StreamBuffer, len(res.Outputs)),
	}
	for i, b := range res.Outputs {
		b.Buffer = nil
		cr.Outputs[i] = b
	}
	if cr.Input != nil {
		in := *cr.Input
		in.Buffer = nil
		cr.Input = &in
	}

	cb.ProcessCaptureResult(cr)
}

// abort fails all tracked requests, caller holds resultMu
func (s *Session) abort() {
	for _, res := range s.tracker.AbortAll() {
		s.deliver(res, true)
	}
}

// fail stops the session after unrecoverable device error
func (s *Session) fail(err error) {
	s.log.Error().Err(err).Msg("[session] device error")

	s.mu.Lock()
	s.failed = err
	s.cond.Broadcast()
	s.mu.Unlock()

	s.opts.Callback.Notify(&Message{Type: MessageError, Code: ErrorDevice, StreamID: -1})

	s.submitMu.Lock()
	s.resultMu.Lock()
	s.abort()
	if err1 := s.drv.StreamOff(); err1 != nil {
		s.log.Debug().Err(err1).Msg("[session] stream off")
	}
	s.started = false
	s.resultMu.Unlock()
	s.submitMu.Unlock()
}
