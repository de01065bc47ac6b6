// Package track models the tracked pointer: the sliding position window
// used as the motion predicate, and the pointer state machine that turns
// raw pose updates into motion and acquisition events.
package track

import (
	"math"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// DefaultQueueSize is the usual motion-detection window.
const DefaultQueueSize = 20

// PositionQueue is a fixed-capacity window over the most recent pointer
// positions. Index 0 holds the newest position. Stride, the distance
// between the newest and oldest queued positions, is the sole motion
// predicate: moving means stride above the tolerance.
type PositionQueue struct {
	maxSize int
	queue   []geom.Vec3
	sum     geom.Vec3
}

// NewPositionQueue returns an empty queue with the given capacity.
func NewPositionQueue(size int) *PositionQueue {
	return &PositionQueue{maxSize: size}
}

// Reset empties the queue.
func (q *PositionQueue) Reset() {
	q.queue = q.queue[:0]
	q.sum = geom.Vec3{}
}

// Size returns the number of queued positions.
func (q *PositionQueue) Size() int {
	return len(q.queue)
}

// Full reports whether the window holds maxSize positions.
func (q *PositionQueue) Full() bool {
	return len(q.queue) >= q.maxSize
}

// Push inserts pos at the front, evicting the oldest position once the
// window is full.
func (q *PositionQueue) Push(pos geom.Vec3) {
	q.queue = append([]geom.Vec3{pos}, q.queue...)
	q.sum = q.sum.Add(pos)
	if len(q.queue) > q.maxSize {
		last := len(q.queue) - 1
		q.sum = q.sum.Sub(q.queue[last])
		q.queue = q.queue[:last]
	}
}

// Newest returns the most recently pushed position, or the NaN vector
// when empty.
func (q *PositionQueue) Newest() geom.Vec3 {
	if len(q.queue) == 0 {
		return geom.NaNVec()
	}
	return q.queue[0]
}

// Oldest returns the oldest queued position, or the NaN vector when
// empty.
func (q *PositionQueue) Oldest() geom.Vec3 {
	if len(q.queue) == 0 {
		return geom.NaNVec()
	}
	return q.queue[len(q.queue)-1]
}

// Avg returns the mean of the queued positions.
func (q *PositionQueue) Avg() geom.Vec3 {
	if len(q.queue) == 0 {
		return geom.NaNVec()
	}
	return q.sum.Scale(1 / float64(len(q.queue)))
}

// Stride returns the distance between the newest and oldest queued
// positions, or +Inf while the window is not yet full so that no motion
// judgement is made before enough history exists.
func (q *PositionQueue) Stride() float64 {
	if len(q.queue) < q.maxSize {
		return math.Inf(1)
	}
	return geom.Dist(q.queue[0], q.queue[len(q.queue)-1])
}

// StrideMean is Stride computed between the mean of the w1 newest and
// the mean of the w2 oldest positions. Invalid windows fall back to
// w1 = w2 = 1.
func (q *PositionQueue) StrideMean(w1, w2 int) float64 {
	if len(q.queue) < q.maxSize {
		return math.Inf(1)
	}
	w1, w2 = q.clampWindows(w1, w2)
	return geom.Dist(geom.Mean(q.queue[:w1]), geom.Mean(q.queue[len(q.queue)-w2:]))
}

// StrideMedian is Stride computed between the component-wise medians of
// the w1 newest and w2 oldest positions. Invalid windows fall back to
// w1 = w2 = 1.
func (q *PositionQueue) StrideMedian(w1, w2 int) float64 {
	if len(q.queue) < q.maxSize {
		return math.Inf(1)
	}
	w1, w2 = q.clampWindows(w1, w2)
	return geom.Dist(geom.Median(q.queue[:w1]), geom.Median(q.queue[len(q.queue)-w2:]))
}

func (q *PositionQueue) clampWindows(w1, w2 int) (int, int) {
	if w1 <= 0 || w2 <= 0 || w1+w2 > q.maxSize {
		return 1, 1
	}
	return w1, w2
}
