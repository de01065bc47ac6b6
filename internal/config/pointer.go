package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
)

// LoadPointer parses a pointer file into p: MAXTILT, the standard
// ROLL/PITCH/YAW axes of the pointer body and its HEIGHT above the tip.
// The axes must form an orthogonal right-handed frame. On error p is
// left untouched.
func LoadPointer(path string, p *track.Pointer) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	maxTilt := p.MaxTilt
	height := 0.0
	var roll, pitch, yaw geom.Vec3
	var haveRoll, havePitch, haveYaw bool

	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "MAXTILT"):
			vals, err := parseFloatList(l)
			if err != nil || len(vals) != 1 {
				return fmt.Errorf("pointer %s: MAXTILT wants one value", path)
			}
			maxTilt = vals[0]
		case strings.HasPrefix(l, "HEIGHT"):
			vals, err := parseFloatList(l)
			if err != nil || len(vals) != 1 {
				return fmt.Errorf("pointer %s: HEIGHT wants one value", path)
			}
			height = vals[0]
		case strings.HasPrefix(l, "ROLL"):
			if roll, err = parseVec3(l); err != nil {
				return fmt.Errorf("pointer %s: ROLL: %w", path, err)
			}
			haveRoll = true
		case strings.HasPrefix(l, "PITCH"):
			if pitch, err = parseVec3(l); err != nil {
				return fmt.Errorf("pointer %s: PITCH: %w", path, err)
			}
			havePitch = true
		case strings.HasPrefix(l, "YAW"):
			if yaw, err = parseVec3(l); err != nil {
				return fmt.Errorf("pointer %s: YAW: %w", path, err)
			}
			haveYaw = true
		}
	}

	if !haveRoll || !haveYaw {
		return fmt.Errorf("pointer %s: ROLL and YAW axes are required", path)
	}
	if havePitch {
		if err := checkAxes(roll, pitch, yaw); err != nil {
			return fmt.Errorf("pointer %s: %w", path, err)
		}
	}

	p.ID = id
	p.MaxTilt = maxTilt
	p.Height = height
	p.SetPointerAxes(roll, yaw)
	return nil
}

// checkAxes verifies the frame is orthogonal and right-handed.
func checkAxes(roll, pitch, yaw geom.Vec3) error {
	const eps = 1e-3
	if math.Abs(roll.Unit().Dot(yaw.Unit())) > eps {
		return fmt.Errorf("roll and yaw axes not orthogonal")
	}
	if yaw.Unit().Cross(roll.Unit()).Dot(pitch.Unit()) < 1-eps {
		return fmt.Errorf("axes do not form a right-handed frame")
	}
	return nil
}
