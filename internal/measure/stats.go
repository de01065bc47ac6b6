// Package measure implements the three statistics engines of the test
// battery: repeated single-point acquisition (accuracy and precision),
// continuous rotation sampling (precision over an angular range) and
// multi-point distance/registration errors. All records are keyed by
// working-volume location, with an "ALL" aggregate across locations.
package measure

import (
	"gonum.org/v1/gonum/stat"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
)

// AllKey indexes the cross-location aggregate in every stats map.
const AllKey = "ALL"

// ErrorStats summarizes a set of scalar errors.
type ErrorStats struct {
	Num  int     `json:"num"`
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Std  float64 `json:"std"`
	RMS  float64 `json:"rms"`
}

// NewErrorStats computes the aggregate of errs. Empty input yields the
// zero value.
func NewErrorStats(errs []float64) ErrorStats {
	if len(errs) == 0 {
		return ErrorStats{}
	}
	s := ErrorStats{
		Num:  len(errs),
		Mean: stat.Mean(errs, nil),
		Min:  errs[0],
		Max:  errs[0],
		Std:  stat.PopStdDev(errs, nil),
		RMS:  geom.RMS(errs),
	}
	for _, e := range errs {
		if e < s.Min {
			s.Min = e
		}
		if e > s.Max {
			s.Max = e
		}
	}
	return s
}

// AccuracyStats holds single-point accuracy: the magnitude of the mean
// error vector (which preserves directional bias) and the largest
// single-sample error.
type AccuracyStats struct {
	Num    int     `json:"num"`
	AvgErr float64 `json:"avg err"`
	Max    float64 `json:"max"`
}

// NewAccuracyStats computes accuracy of samples against the ground
// truth point.
func NewAccuracyStats(samples []geom.Vec3, gt geom.Vec3) AccuracyStats {
	if len(samples) == 0 {
		return AccuracyStats{}
	}
	s := AccuracyStats{
		Num:    len(samples),
		AvgErr: geom.Dist(geom.Mean(samples), gt),
	}
	for _, m := range samples {
		if d := geom.Dist(m, gt); d > s.Max {
			s.Max = d
		}
	}
	return s
}

// PrecisionStats holds single-point precision: the largest distance
// between two samples and the RMS distance from the sample mean.
type PrecisionStats struct {
	Num  int     `json:"num"`
	Span float64 `json:"span"`
	RMS  float64 `json:"rms"`
}

// NewPrecisionStats computes precision over samples.
func NewPrecisionStats(samples []geom.Vec3) PrecisionStats {
	if len(samples) == 0 {
		return PrecisionStats{}
	}
	return PrecisionStats{
		Num:  len(samples),
		Span: geom.Span(samples),
		RMS:  geom.StdDist(samples),
	}
}

// RotationStats holds rotation-test results: the recorded angular
// range and the positional span/RMS while rotating.
type RotationStats struct {
	Num      int     `json:"num"`
	RangeMin float64 `json:"rangeMin"`
	RangeMax float64 `json:"rangeMax"`
	Span     float64 `json:"span"`
	RMS      float64 `json:"rms"`
}
