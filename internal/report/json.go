package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// boolWord renders booleans the way the archive historically spells
// them.
func boolWord(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteJSON writes the raw-measurement archive. Keys are stable: they
// are what downstream analysis scripts parse.
func (r *Result) WriteJSON(path string) error {
	obj := map[string]any{
		"Tracker Serial Number":          r.TrackerID,
		"Pointer":                        r.PointerID,
		"Working Volume":                 r.WorkingVolumeID,
		"Phantom":                        r.PhantomID,
		"Operator":                       r.Operator,
		"Start date_time":                r.Stamp(),
		"Duration":                       r.DurationString(),
		"Central Divot":                  r.CentralDivot,
		"Point acquisition":              r.AcquisitionMode,
		"Recalibration at each location": boolWord(r.RecalibAtLocation),
		"Calibrated Ground Truth":        r.Calibrations,
		"Multi-point Measurements":       r.Dist.Measurements,
	}
	for _, sp := range r.SinglePoints {
		obj[fmt.Sprintf("Single Point Measurements [%s]", sp.Orientation)] = sp.Measurements
	}
	for _, rot := range r.Rotations {
		obj[fmt.Sprintf("%s Rotation Measurements", rot.Axis)] = rot.Measurements
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session data: %w", err)
	}
	return nil
}
