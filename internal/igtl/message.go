// Package igtl implements the subset of the OpenIGTLink protocol the
// tracker bridge emits: TRANSFORM messages carrying tool poses and
// STATUS messages carrying visibility. A Mux fans decoded poses out to
// multiple subscribers over a single connection.
package igtl

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

const (
	headerSize    = 58
	transformSize = 48

	// maxBodySize bounds the advertised body length before anything is
	// allocated or skipped. The messages the bridge emits are all well
	// under a kilobyte.
	maxBodySize = 1 << 16

	typeTransform = "TRANSFORM"
	typeStatus    = "STATUS"
)

// STATUS codes. Anything but StatusOK marks the tool invisible.
const (
	StatusOK       uint16 = 1
	StatusNotFound uint16 = 13
)

// Pose is one decoded tool pose sample.
type Pose struct {
	Tool    string
	Matrix  geom.Mat34
	Visible bool
	At      time.Time
}

// header is the fixed OpenIGTLink message header.
type header struct {
	Version  uint16
	Type     string
	Device   string
	Stamp    uint64
	BodySize uint64
	CRC      uint64
}

func readHeader(r io.Reader) (header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, err
	}
	h := header{
		Version:  binary.BigEndian.Uint16(buf[0:2]),
		Type:     strings.TrimRight(string(buf[2:14]), "\x00"),
		Device:   strings.TrimRight(string(buf[14:34]), "\x00"),
		Stamp:    binary.BigEndian.Uint64(buf[34:42]),
		BodySize: binary.BigEndian.Uint64(buf[42:50]),
		CRC:      binary.BigEndian.Uint64(buf[50:58]),
	}
	return h, nil
}

func writeHeader(w io.Writer, h header) error {
	var buf [headerSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	copy(buf[2:14], h.Type)
	copy(buf[14:34], h.Device)
	binary.BigEndian.PutUint64(buf[34:42], h.Stamp)
	binary.BigEndian.PutUint64(buf[42:50], h.BodySize)
	binary.BigEndian.PutUint64(buf[50:58], h.CRC)
	_, err := w.Write(buf[:])
	return err
}

// ReadPose reads the next TRANSFORM or STATUS message and returns the
// pose it carries. Unknown message types are skipped. A transform with
// non-finite entries, and a STATUS with a non-OK code, both mark the
// tool not visible.
func ReadPose(r io.Reader) (Pose, error) {
	for {
		h, err := readHeader(r)
		if err != nil {
			return Pose{}, err
		}
		if h.BodySize > maxBodySize {
			return Pose{}, fmt.Errorf("%s body size %d exceeds %d", h.Type, h.BodySize, maxBodySize)
		}
		switch h.Type {
		case typeTransform:
			if h.BodySize != transformSize {
				return Pose{}, fmt.Errorf("transform body size %d, want %d", h.BodySize, transformSize)
			}
			var body [transformSize]byte
			if _, err := io.ReadFull(r, body[:]); err != nil {
				return Pose{}, err
			}
			return decodeTransform(h, body), nil
		case typeStatus:
			body := make([]byte, h.BodySize)
			if _, err := io.ReadFull(r, body); err != nil {
				return Pose{}, err
			}
			visible := len(body) >= 2 && binary.BigEndian.Uint16(body[0:2]) == StatusOK
			return Pose{Tool: h.Device, Visible: visible, At: stampTime(h.Stamp)}, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(h.BodySize)); err != nil {
				return Pose{}, err
			}
		}
	}
}

// decodeTransform unpacks the 12 column-major float32 values: three
// rotation columns followed by the translation.
func decodeTransform(h header, body [transformSize]byte) Pose {
	var f [12]float64
	finite := true
	for i := range f {
		f[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(body[4*i : 4*i+4])))
		if math.IsNaN(f[i]) || math.IsInf(f[i], 0) {
			finite = false
		}
	}
	m := geom.Mat34{
		{f[0], f[3], f[6], f[9]},
		{f[1], f[4], f[7], f[10]},
		{f[2], f[5], f[8], f[11]},
	}
	return Pose{Tool: h.Device, Matrix: m, Visible: finite, At: stampTime(h.Stamp)}
}

// WriteTransform encodes a TRANSFORM message. The mock playback source
// and the protocol tests share this writer.
func WriteTransform(w io.Writer, device string, m geom.Mat34, at time.Time) error {
	if err := writeHeader(w, header{
		Version:  1,
		Type:     typeTransform,
		Device:   device,
		Stamp:    timeStamp(at),
		BodySize: transformSize,
	}); err != nil {
		return err
	}
	var body [transformSize]byte
	cols := [12]float64{
		m[0][0], m[1][0], m[2][0],
		m[0][1], m[1][1], m[2][1],
		m[0][2], m[1][2], m[2][2],
		m[0][3], m[1][3], m[2][3],
	}
	for i, v := range cols {
		binary.BigEndian.PutUint32(body[4*i:4*i+4], math.Float32bits(float32(v)))
	}
	_, err := w.Write(body[:])
	return err
}

// WriteStatus encodes a STATUS message. Code 1 means OK (visible).
func WriteStatus(w io.Writer, device string, code uint16, at time.Time) error {
	body := make([]byte, 30)
	binary.BigEndian.PutUint16(body[0:2], code)
	if err := writeHeader(w, header{
		Version:  1,
		Type:     typeStatus,
		Device:   device,
		Stamp:    timeStamp(at),
		BodySize: uint64(len(body)),
	}); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// OpenIGTLink timestamps are seconds in the high 32 bits and a 32 bit
// binary fraction in the low ones.
func timeStamp(t time.Time) uint64 {
	sec := uint64(t.Unix())
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return sec<<32 | frac&0xffffffff
}

func stampTime(s uint64) time.Time {
	sec := int64(s >> 32)
	nsec := int64(float64(s&0xffffffff) / (1 << 32) * 1e9)
	return time.Unix(sec, nsec)
}
