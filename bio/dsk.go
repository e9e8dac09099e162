package bio

import (
	"io"
	"os"
	"sync"
)

// Device is whatever the volume lives on.
type Device interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// Opens an existing container file read-write.
func OpenFile(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR, 0)
}

// Creates (or truncates) a container file of exactly size bytes,
// all zero.
func CreateFile(name string, size int64) (*os.File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Fake disk

// MemDisk is a fixed-size in-memory Device.
// Transfers past the end come back short with io.EOF.
type MemDisk struct {
	mu  sync.Mutex
	buf []byte
}

func NewMemDisk(size int64) *MemDisk {
	return &MemDisk{buf: make([]byte, size)}
}

func (m *MemDisk) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemDisk) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	n := copy(m.buf[off:], p)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close keeps the bytes around so the same image
// can be mounted again.
func (m *MemDisk) Close() error {
	return nil
}

// Bytes returns the raw image.
func (m *MemDisk) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf
}
