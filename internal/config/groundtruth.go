// Package config loads the plain-text definition files describing the
// phantom ground truth, the tracker working volume and the pointer
// geometry, plus the JSON session options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
)

// LoadGroundTruth parses a ground truth file into p. The file carries
// REF (reference divot labels), CTR (central divot), SEQ (multi-point
// sequence) and POINT blocks with X/Y/Z coordinate lines. On error p
// is left untouched.
func LoadGroundTruth(path string, p *phantom.Phantom) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	central := 1
	var refs, seq []int
	gt := make(map[int]geom.Vec3)

	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "REF"):
			refs, err = parseIntList(l)
			if err != nil {
				return fmt.Errorf("ground truth %s: REF: %w", path, err)
			}
			if len(refs) < 3 {
				return fmt.Errorf("ground truth %s: REF needs at least 3 labels, got %d", path, len(refs))
			}
		case strings.HasPrefix(l, "SEQ"):
			seq, err = parseIntList(l)
			if err != nil {
				return fmt.Errorf("ground truth %s: SEQ: %w", path, err)
			}
		case strings.HasPrefix(l, "CTR"):
			v, err := rhs(l)
			if err != nil {
				return fmt.Errorf("ground truth %s: CTR: %w", path, err)
			}
			central, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("ground truth %s: CTR: %w", path, err)
			}
		}
	}

	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "POINT") {
			continue
		}
		if i+3 >= len(lines) {
			return fmt.Errorf("ground truth %s: truncated POINT block at line %d", path, i+1)
		}
		f := strings.Fields(lines[i])
		if len(f) < 2 {
			return fmt.Errorf("ground truth %s: POINT without label at line %d", path, i+1)
		}
		label, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("ground truth %s: POINT label: %w", path, err)
		}
		var pt geom.Vec3
		for j := 0; j < 3; j++ {
			cf := strings.Fields(lines[i+1+j])
			if len(cf) < 2 {
				return fmt.Errorf("ground truth %s: bad coordinate at line %d", path, i+2+j)
			}
			pt[j], err = strconv.ParseFloat(cf[1], 64)
			if err != nil {
				return fmt.Errorf("ground truth %s: coordinate: %w", path, err)
			}
		}
		gt[label] = pt
	}

	probe := phantom.New()
	probe.ID = id
	probe.GroundTruth = gt
	probe.CalibLabels = refs
	probe.CentralDivot = central
	probe.Sequence = seq
	if err := probe.Validate(); err != nil {
		return fmt.Errorf("ground truth %s: %w", path, err)
	}

	p.ID = id
	p.GroundTruth = gt
	p.CalibLabels = refs
	p.CentralDivot = central
	p.Sequence = seq
	p.ResetCalib()
	return nil
}

// readLines slurps a definition file, capped at 1 MB.
func readLines(path string) ([]string, error) {
	cleanPath := filepath.Clean(path)
	fi, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat definition file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fi.Size() > maxFileSize {
		return nil, fmt.Errorf("definition file too large: %d bytes (max %d)", fi.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

// rhs returns the part after the = sign.
func rhs(line string) (string, error) {
	_, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", fmt.Errorf("missing '=' in %q", line)
	}
	return v, nil
}

func parseIntList(line string) ([]int, error) {
	v, err := rhs(line)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, f := range strings.Fields(v) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad label %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatList(line string) ([]float64, error) {
	v, err := rhs(line)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, f := range strings.Fields(v) {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", f, err)
		}
		out = append(out, x)
	}
	return out, nil
}

func parseVec3(line string) (geom.Vec3, error) {
	vals, err := parseFloatList(line)
	if err != nil {
		return geom.Vec3{}, err
	}
	if len(vals) != 3 {
		return geom.Vec3{}, fmt.Errorf("want 3 values, got %d", len(vals))
	}
	return geom.Vec3{vals[0], vals[1], vals[2]}, nil
}
