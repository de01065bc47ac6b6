package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

// LoadWorkingVolume parses a working volume file into v: the MODEL id,
// outline NODE points, the MOVTOLMIN/MOVTOLMAX tolerance breakpoints,
// the CL/BL/TL/LL/RL anchor locations and the standard tracker axes.
// On error v is left untouched.
func LoadWorkingVolume(path string, v *wv.WorkingVolume) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	out := wv.New()
	out.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(l, "MODEL"):
			mv, err := rhs(l)
			if err != nil {
				return fmt.Errorf("working volume %s: MODEL: %w", path, err)
			}
			out.ModelID = strings.TrimSpace(mv)
		case strings.HasPrefix(l, "NODE"):
			vals, err := parseFloatList(l)
			if err != nil {
				return fmt.Errorf("working volume %s: NODE: %w", path, err)
			}
			if len(vals) != 4 {
				return fmt.Errorf("working volume %s: NODE wants id x y z at line %d", path, i+1)
			}
			out.Nodes[int(vals[0])] = geom.Vec3{vals[1], vals[2], vals[3]}
		case strings.HasPrefix(l, "MOVTOLMIN"):
			vals, err := parseFloatList(l)
			if err != nil || len(vals) != 2 {
				return fmt.Errorf("working volume %s: MOVTOLMIN wants tol depth at line %d", path, i+1)
			}
			out.TolMin = wv.ToleranceBreakpoint{Tol: vals[0], Depth: vals[1]}
		case strings.HasPrefix(l, "MOVTOLMAX"):
			vals, err := parseFloatList(l)
			if err != nil || len(vals) != 2 {
				return fmt.Errorf("working volume %s: MOVTOLMAX wants tol depth at line %d", path, i+1)
			}
			out.TolMax = wv.ToleranceBreakpoint{Tol: vals[0], Depth: vals[1]}
		case strings.HasPrefix(l, "ROLL"):
			if out.RollAxis, err = parseVec3(l); err != nil {
				return fmt.Errorf("working volume %s: ROLL: %w", path, err)
			}
		case strings.HasPrefix(l, "PITCH"):
			if out.PitchAxis, err = parseVec3(l); err != nil {
				return fmt.Errorf("working volume %s: PITCH: %w", path, err)
			}
		case strings.HasPrefix(l, "YAW"):
			if out.YawAxis, err = parseVec3(l); err != nil {
				return fmt.Errorf("working volume %s: YAW: %w", path, err)
			}
		default:
			loc := strings.TrimSpace(strings.SplitN(l, "=", 2)[0])
			if !isLocation(loc) {
				continue
			}
			p, err := parseVec3(l)
			if err != nil {
				return fmt.Errorf("working volume %s: %s: %w", path, loc, err)
			}
			out.Locations[loc] = p
		}
	}

	if len(out.Locations) == 0 {
		return fmt.Errorf("working volume %s: no anchor locations", path)
	}

	v.ID = out.ID
	v.ModelID = out.ModelID
	v.Nodes = out.Nodes
	v.Locations = out.Locations
	v.TolMin = out.TolMin
	v.TolMax = out.TolMax
	v.RollAxis = out.RollAxis
	v.PitchAxis = out.PitchAxis
	v.YawAxis = out.YawAxis
	return nil
}

func isLocation(s string) bool {
	for _, l := range wv.LocationOrder {
		if s == l {
			return true
		}
	}
	return false
}
