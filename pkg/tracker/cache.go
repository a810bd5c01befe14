package tracker

import (
	"sync"

	"github.com/AlexxIT/go2cam/pkg/frame"
)

// Cache keeps imported client buffers per stream and buffer id
type Cache struct {
	mu      sync.Mutex
	buffers map[int32]map[uint64]frame.FrameBuffer
}

func NewCache() *Cache {
	return &Cache{buffers: map[int32]map[uint64]frame.FrameBuffer{}}
}

func (c *Cache) Get(streamID int32, bufferID uint64) (frame.FrameBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.buffers[streamID][bufferID]
	return buf, ok
}

// Put returns the replaced buffer if there was one
func (c *Cache) Put(streamID int32, bufferID uint64, buf frame.FrameBuffer) frame.FrameBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.buffers[streamID]
	if m == nil {
		m = map[uint64]frame.FrameBuffer{}
		c.buffers[streamID] = m
	}
	old := m[bufferID]
	m[bufferID] = buf
	return old
}

// Evict removes buffers of one stream, without ids removes the whole stream
func (c *Cache) Evict(streamID int32, bufferIDs ...uint64) []frame.FrameBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.buffers[streamID]
	var items []frame.FrameBuffer

	if len(bufferIDs) == 0 {
		for _, buf := range m {
			items = append(items, buf)
		}
		delete(c.buffers, streamID)
		return items
	}

	for _, id := range bufferIDs {
		if buf, ok := m[id]; ok {
			items = append(items, buf)
			delete(m, id)
		}
	}
	return items
}

func (c *Cache) Streams() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int32, 0, len(c.buffers))
	for id := range c.buffers {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cache) Clear() []frame.FrameBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var items []frame.FrameBuffer
	for _, m := range c.buffers {
		for _, buf := range m {
			items = append(items, buf)
		}
	}
	c.buffers = map[int32]map[uint64]frame.FrameBuffer{}
	return items
}

func (c *Cache) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.buffers {
		n += len(m)
	}
	return
}
