package tracker

import (
	"sync"
	"testing"

	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(id uint32, streams ...int32) *Request {
	req := &Request{FrameNumber: id}
	for _, s := range streams {
		req.Outputs = append(req.Outputs, StreamBuffer{StreamID: s, BufferID: uint64(id)*10 + uint64(s)})
	}
	return req
}

func TestTrack(t *testing.T) {
	tr := New()
	require.ErrorIs(t, tr.Track(&Request{FrameNumber: 1}), ErrInvalid)
	require.False(t, tr.Active())

	require.Nil(t, tr.Track(newRequest(1, 0, 1)))
	require.Nil(t, tr.Track(newRequest(1, 0, 1)))
	require.Equal(t, 1, tr.InFlight())
	require.True(t, tr.Active())
	require.True(t, tr.Tracked(1))
	require.False(t, tr.Tracked(2))

	id, b, ok := tr.PopNextOutput()
	require.True(t, ok)
	require.Equal(t, uint32(1), id)
	require.Equal(t, int32(0), b.StreamID)

	done, err := tr.IsComplete(1)
	require.Nil(t, err)
	require.False(t, done)

	require.Nil(t, tr.AddResult(1, b))

	_, b, _ = tr.PopNextOutput()
	require.Equal(t, int32(1), b.StreamID)
	require.False(t, tr.Active())

	b.Status = StatusError
	require.Nil(t, tr.AddResult(1, b))

	res, ok := tr.Complete(1)
	require.True(t, ok)
	require.Len(t, res.Outputs, 2)
	require.Equal(t, 1, res.Errors())
	require.Equal(t, 2, res.PartialResult)

	_, ok = tr.Complete(1)
	require.False(t, ok)
	require.ErrorIs(t, tr.Untrack(1), ErrNotTracked)
	require.ErrorIs(t, tr.AddResult(1, b), ErrNotTracked)
}

func TestOrder(t *testing.T) {
	tr := New()
	require.Nil(t, tr.Track(newRequest(1, 0)))
	require.Nil(t, tr.Track(newRequest(2, 0, 1)))
	require.Nil(t, tr.Track(newRequest(3, 1)))

	id, b, ok := tr.PopOutputFor(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), id)
	require.Equal(t, uint64(21), b.BufferID)

	var ids []uint32
	for {
		id, _, ok = tr.PopNextOutput()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	require.Equal(t, []uint32{1, 2, 3}, ids)

	_, _, ok = tr.PopOutputFor(5)
	require.False(t, ok)
}

func TestInput(t *testing.T) {
	tr := New()
	req := newRequest(7, 0)
	req.Input = &StreamBuffer{StreamID: 9, BufferID: 1}
	require.Nil(t, tr.Track(req))

	_, out, _ := tr.PopNextOutput()
	require.Nil(t, tr.AddResult(7, out))
	require.True(t, tr.Active())

	id, in, ok := tr.PopNextInput()
	require.True(t, ok)
	require.Equal(t, uint32(7), id)
	require.Nil(t, tr.AddInputResult(7, in))

	res, ok := tr.Complete(7)
	require.True(t, ok)
	require.Equal(t, int32(9), res.Input.StreamID)
}

func TestSettings(t *testing.T) {
	tr := New()
	req := newRequest(1, 0)
	req.Settings = "a"
	require.Nil(t, tr.Track(req))
	require.Nil(t, tr.SetSettings(1, "b"))

	_, b, _ := tr.PopNextOutput()
	require.Nil(t, tr.AddResult(1, b))

	s, partial, err := tr.Settings(1)
	require.Nil(t, err)
	require.Equal(t, "b", s)
	require.Equal(t, 1, partial)

	_, _, err = tr.Settings(2)
	require.ErrorIs(t, err, ErrNotTracked)
}

func TestAbortAll(t *testing.T) {
	tr := New()
	require.Nil(t, tr.Track(newRequest(1, 0, 1)))
	require.Nil(t, tr.Track(newRequest(2, 0)))
	req := newRequest(3, 1)
	req.Input = &StreamBuffer{StreamID: 2}
	require.Nil(t, tr.Track(req))

	// one output already filled
	_, b, _ := tr.PopNextOutput()
	require.Nil(t, tr.AddResult(1, b))

	results := tr.AbortAll()
	require.Len(t, results, 3)

	var failed int
	for _, res := range results {
		failed += res.Errors()
	}
	require.Equal(t, 3, failed)
	require.Equal(t, StatusOK, results[0].Outputs[0].Status)
	require.Equal(t, StatusError, results[2].Input.Status)

	require.False(t, tr.Active())
	require.Zero(t, tr.InFlight())
	_, _, ok := tr.PopNextOutput()
	require.False(t, ok)
}

// every request completes exactly once whatever the completion order
func TestCompleteOnce(t *testing.T) {
	const n, k = 20, 3

	tr := New()
	for i := uint32(0); i < n; i++ {
		require.Nil(t, tr.Track(newRequest(i, 0, 1, 2)))
	}

	var mu sync.Mutex
	completed := map[uint32]int{}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, b, ok := tr.PopNextOutput()
				if !ok {
					return
				}
				assert.Nil(t, tr.AddResult(id, b))
				if res, ok := tr.Complete(id); ok {
					mu.Lock()
					completed[id]++
					mu.Unlock()
					assert.Len(t, res.Outputs, k)
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, completed, n)
	for id, count := range completed {
		require.Equal(t, 1, count, "frame %d", id)
	}
	require.Zero(t, tr.InFlight())
}

func TestCache(t *testing.T) {
	c := NewCache()
	b1 := frame.NewAllocated(2, 2, fourcc.YUV420)
	b2 := frame.NewAllocated(2, 2, fourcc.YUV420)

	require.Nil(t, c.Put(0, 1, b1))
	require.Nil(t, c.Put(0, 2, b2))
	require.Nil(t, c.Put(1, 1, b1))
	require.Equal(t, 3, c.Len())

	buf, ok := c.Get(0, 2)
	require.True(t, ok)
	require.Same(t, b2, buf)

	require.Same(t, b1, c.Put(0, 1, b2))

	require.Len(t, c.Evict(0, 1, 5), 1)
	require.Equal(t, 2, c.Len())

	require.Len(t, c.Evict(1), 1)
	require.Equal(t, []int32{0}, c.Streams())

	require.Len(t, c.Clear(), 1)
	require.Zero(t, c.Len())
}
