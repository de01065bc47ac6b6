package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

// Options is the JSON session configuration. Fields omitted from the
// file retain their defaults, so partial configs are safe.
type Options struct {
	Operator  *string `json:"operator,omitempty"`
	TrackerID *string `json:"tracker_id,omitempty"`

	// AcquisitionMode is "1-frame", "mean" or "median".
	AcquisitionMode *string `json:"acquisition_mode,omitempty"`
	// AcquisitionDuration is a duration string like "3s", used by the
	// 1-frame mode.
	AcquisitionDuration *string `json:"acquisition_duration,omitempty"`
	NumFrames           *int    `json:"num_frames,omitempty"`

	RecalibAtLocation *bool `json:"recalib_at_location,omitempty"`

	// Tests lists the enabled test names in any order; nil keeps the
	// full battery.
	Tests []string `json:"tests,omitempty"`
	// Locations lists the working volume anchors to visit; nil keeps
	// every location the volume defines.
	Locations []string `json:"locations,omitempty"`
}

// LoadOptions loads session options from a JSON file.
func LoadOptions(path string) (*Options, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("options file must have .json extension, got %q", ext)
	}
	fi, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat options file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fi.Size() > maxFileSize {
		return nil, fmt.Errorf("options file too large: %d bytes (max %d)", fi.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse options file: %w", err)
	}
	return &o, nil
}

// Apply pushes the options onto a controller before Start.
func (o *Options) Apply(c *session.Controller) error {
	if o.Operator != nil {
		c.OperatorID = *o.Operator
	}
	if o.TrackerID != nil {
		c.TrackerID = *o.TrackerID
	}
	if o.AcquisitionMode != nil {
		switch *o.AcquisitionMode {
		case "1-frame":
			c.Pointer.Mode = track.SingleFrame
		case "mean":
			c.Pointer.Mode = track.MeanOfN
		case "median":
			c.Pointer.Mode = track.MedianOfN
		default:
			return fmt.Errorf("unknown acquisition mode %q", *o.AcquisitionMode)
		}
	}
	if o.AcquisitionDuration != nil {
		d, err := time.ParseDuration(*o.AcquisitionDuration)
		if err != nil {
			return fmt.Errorf("bad acquisition duration: %w", err)
		}
		c.Pointer.TimerDuration = d
	}
	if o.NumFrames != nil {
		if *o.NumFrames < 1 {
			return fmt.Errorf("num_frames must be positive, got %d", *o.NumFrames)
		}
		c.Pointer.NumFrames = *o.NumFrames
	}
	if o.RecalibAtLocation != nil {
		c.RecalibAtLocation = *o.RecalibAtLocation
	}
	if o.Tests != nil {
		for _, k := range session.TestOrder {
			c.Battery.SetEnabled(k, false)
		}
		for _, name := range o.Tests {
			k, ok := testByName(name)
			if !ok {
				return fmt.Errorf("unknown test %q", name)
			}
			c.Battery.SetEnabled(k, true)
		}
	}

	locs := o.Locations
	if locs == nil {
		for _, l := range wv.LocationOrder {
			if _, ok := c.WV.Locations[l]; ok {
				locs = append(locs, l)
			}
		}
	} else {
		for _, l := range locs {
			if _, ok := c.WV.Locations[l]; !ok {
				return fmt.Errorf("location %q not in working volume %s", l, c.WV.ID)
			}
		}
	}
	c.SetLocations(locs)
	return nil
}

func testByName(name string) (session.TestKind, bool) {
	for _, k := range session.TestOrder {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}
