package igtl

import (
	"io"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// MockConn implements Conner over an in-memory pipe. Tests and the
// development mode push messages in; the mux reads them out exactly as
// it would from a TCP bridge.
type MockConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func NewMockConn() *MockConn {
	r, w := io.Pipe()
	return &MockConn{r: r, w: w}
}

func (c *MockConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *MockConn) Close() error {
	c.w.Close()
	return c.r.Close()
}

// SendTransform pushes one TRANSFORM message. It blocks until the mux
// reads it.
func (c *MockConn) SendTransform(device string, m geom.Mat34, at time.Time) error {
	return WriteTransform(c.w, device, m, at)
}

// SendStatus pushes one STATUS message.
func (c *MockConn) SendStatus(device string, code uint16, at time.Time) error {
	return WriteStatus(c.w, device, code, at)
}

// CloseWrite ends the stream; the mux sees EOF and stops.
func (c *MockConn) CloseWrite() error { return c.w.Close() }
