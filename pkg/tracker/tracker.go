package tracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AlexxIT/go2cam/pkg/frame"
)

var (
	ErrInvalid    = errors.New("tracker: invalid request")
	ErrNotTracked = errors.New("tracker: request not tracked")
)

type Status byte

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "error"
}

// StreamBuffer is one client buffer of a request
type StreamBuffer struct {
	StreamID int32
	BufferID uint64
	Status   Status
	// Buffer is resolved by the session from the buffer cache
	Buffer frame.FrameBuffer
}

type Request struct {
	FrameNumber uint32
	Settings    any
	Input       *StreamBuffer
	Outputs     []StreamBuffer
}

// Result is a request with every buffer filled or failed
type Result struct {
	FrameNumber   uint32
	Settings      any
	PartialResult int
	Input         *StreamBuffer
	Outputs       []StreamBuffer
}

// Errors returns count of failed output buffers
func (r *Result) Errors() (n int) {
	for _, b := range r.Outputs {
		if b.Status != StatusOK {
			n++
		}
	}
	return
}

type capture struct {
	id       uint32
	settings any
	partial  int

	outputs []StreamBuffer // pending, FIFO
	input   *StreamBuffer

	results     []StreamBuffer
	inputResult *StreamBuffer
}

func (c *capture) pending() bool {
	return len(c.outputs) > 0 || c.input != nil
}

// Tracker matches filled device buffers with pending client requests.
// Requests are kept in arrival order.
type Tracker struct {
	mu       sync.Mutex
	captures []*capture
}

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) find(id uint32) *capture {
	for _, c := range t.captures {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Track adds request, tracking the same frame number twice is a no-op
func (t *Tracker) Track(req *Request) error {
	if len(req.Outputs) == 0 {
		return fmt.Errorf("%w: frame %d has no outputs", ErrInvalid, req.FrameNumber)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.find(req.FrameNumber) != nil {
		return nil
	}

	c := &capture{
		id:       req.FrameNumber,
		settings: req.Settings,
		outputs:  append([]StreamBuffer(nil), req.Outputs...),
	}
	if req.Input != nil {
		in := *req.Input
		c.input = &in
	}
	t.captures = append(t.captures, c)
	return nil
}

// Tracked reports if the frame number is tracked and not untracked yet
func (t *Tracker) Tracked(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.find(id) != nil
}

// Active reports if any request waits for a buffer
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.captures {
		if c.pending() {
			return true
		}
	}
	return false
}

// InFlight returns count of tracked requests, including completed
// but not untracked ones
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.captures)
}

// PopNextOutput pops the oldest pending output of any stream
func (t *Tracker) PopNextOutput() (uint32, StreamBuffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.captures {
		if len(c.outputs) > 0 {
			b := c.outputs[0]
			c.outputs = c.outputs[1:]
			return c.id, b, true
		}
	}
	return 0, StreamBuffer{}, false
}

// PopOutputFor pops the oldest pending output of one stream
func (t *Tracker) PopOutputFor(streamID int32) (uint32, StreamBuffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.captures {
		for i, b := range c.outputs {
			if b.StreamID == streamID {
				c.outputs = append(c.outputs[:i:i], c.outputs[i+1:]...)
				return c.id, b, true
			}
		}
	}
	return 0, StreamBuffer{}, false
}

func (t *Tracker) PopNextInput() (uint32, StreamBuffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.captures {
		if c.input != nil {
			b := *c.input
			c.input = nil
			return c.id, b, true
		}
	}
	return 0, StreamBuffer{}, false
}

func (t *Tracker) AddResult(id uint32, b StreamBuffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return fmt.Errorf("%w: frame %d", ErrNotTracked, id)
	}
	c.results = append(c.results, b)
	c.partial++
	return nil
}

func (t *Tracker) AddInputResult(id uint32, b StreamBuffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return fmt.Errorf("%w: frame %d", ErrNotTracked, id)
	}
	c.inputResult = &b
	c.partial++
	return nil
}

func (t *Tracker) IsComplete(id uint32) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return false, fmt.Errorf("%w: frame %d", ErrNotTracked, id)
	}
	return !c.pending(), nil
}

func (t *Tracker) SetSettings(id uint32, settings any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return fmt.Errorf("%w: frame %d", ErrNotTracked, id)
	}
	c.settings = settings
	return nil
}

// Settings returns request settings and count of results saved so far
func (t *Tracker) Settings(id uint32) (any, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.find(id)
	if c == nil {
		return nil, 0, fmt.Errorf("%w: frame %d", ErrNotTracked, id)
	}
	return c.settings, c.partial, nil
}

// Complete untracks request and returns its result if nothing is pending.
// Only the first call for a completed request returns true.
func (t *Tracker) Complete(id uint32) (*Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.captures {
		if c.id != id {
			continue
		}
		if c.pending() {
			return nil, false
		}
		t.captures = append(t.captures[:i], t.captures[i+1:]...)
		return c.result(), true
	}
	return nil, false
}

func (c *capture) result() *Result {
	return &Result{
		FrameNumber:   c.id,
		Settings:      c.settings,
		PartialResult: c.partial,
		Input:         c.inputResult,
		Outputs:       c.results,
	}
}

func (t *Tracker) Untrack(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.captures {
		if c.id == id {
			t.captures = append(t.captures[:i], t.captures[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: frame %d", ErrNotTracked, id)
}

// AbortAll fails every pending buffer and clears the tracker.
// Results keep outputs that were already filled.
func (t *Tracker) AbortAll() []*Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	results := make([]*Result, 0, len(t.captures))
	for _, c := range t.captures {
		for _, b := range c.outputs {
			b.Status = StatusError
			c.results = append(c.results, b)
			c.partial++
		}
		c.outputs = nil
		if c.input != nil {
			in := *c.input
			in.Status = StatusError
			c.inputResult = &in
			c.input = nil
			c.partial++
		}
		results = append(results, c.result())
	}
	t.captures = nil

	return results
}
