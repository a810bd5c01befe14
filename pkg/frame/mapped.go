package frame

import (
	"fmt"
	"sync"

	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

// Mapped is a read-only shared mapping of an exported device buffer.
// It owns both the mapping and the descriptor.
type Mapped struct {
	header
	fd     int
	length int
	data   []byte
	mu     sync.Mutex
}

func NewMapped(fd, length int) *Mapped {
	return &Mapped{fd: fd, length: length}
}

func (m *Mapped) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

func (m *Mapped) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	return m.data[:m.size]
}

func (m *Mapped) Capacity() int { return m.length }

func (m *Mapped) SetSize(n int) error {
	if n < 0 || n > m.length {
		return fmt.Errorf("%w: size %d over capacity %d", ErrInvalid, n, m.length)
	}
	m.size = n
	return nil
}

func (m *Mapped) Map() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data != nil {
		return fmt.Errorf("%w: already mapped", ErrInvalid)
	}
	data, err := mmap(m.fd, m.length)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *Mapped) Unmap() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return ErrNotMapped
	}
	err := munmap(m.data)
	m.data = nil
	return err
}

// Close unmaps the buffer if needed and closes the descriptor
func (m *Mapped) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.data != nil {
		err = munmap(m.data)
		m.data = nil
	}
	if m.fd >= 0 {
		if err1 := closeFD(m.fd); err == nil {
			err = err1
		}
		m.fd = -1
	}
	return err
}

// Fill sets the frame description of the data the device wrote
func (m *Mapped) Fill(w, h int, f fourcc.PixelFormat, bytesused int) error {
	m.SetFormat(w, h, f)
	return m.SetSize(bytesused)
}
