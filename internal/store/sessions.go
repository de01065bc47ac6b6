package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/report"
)

// SessionSummary is one archived session without its measurement
// payload.
type SessionSummary struct {
	SessionID       string        `json:"session_id"`
	Operator        string        `json:"operator,omitempty"`
	TrackerID       string        `json:"tracker_id,omitempty"`
	PointerID       string        `json:"pointer_id,omitempty"`
	WorkingVolumeID string        `json:"working_volume_id,omitempty"`
	PhantomID       string        `json:"phantom_id,omitempty"`
	Start           time.Time     `json:"start"`
	Duration        time.Duration `json:"duration"`
	Locations       []string      `json:"locations,omitempty"`
}

// InsertSession archives a finished session and its per-location stat
// rows, returning the generated id.
func (s *Store) InsertSession(r *report.Result) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	tx, err := s.Begin()
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	query := `
		INSERT INTO sessions (
			session_id, operator, tracker_id, pointer_id, working_volume_id,
			phantom_id, start_time_ns, duration_secs, locations,
			result_json, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		id,
		r.Operator,
		r.TrackerID,
		r.PointerID,
		r.WorkingVolumeID,
		r.PhantomID,
		r.Start.UnixNano(),
		r.Duration.Seconds(),
		strings.Join(r.Locations, ","),
		string(payload),
		time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	statQuery := `
		INSERT INTO location_stats (
			session_id, test, location, num, mean, min, max,
			std, rms, span, range_min, range_max, avg_err
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, row := range statRows(r) {
		if _, err := tx.Exec(statQuery,
			id, row.Test, row.Location, row.Num,
			row.Mean, row.Min, row.Max, row.Std, row.RMS,
			row.Span, row.RangeMin, row.RangeMax, row.AvgErr,
		); err != nil {
			return "", fmt.Errorf("insert stats %s/%s: %w", row.Test, row.Location, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// GetSession retrieves the full archived result of one session.
func (s *Store) GetSession(sessionID string) (*report.Result, error) {
	var payload string
	err := s.QueryRow(`SELECT result_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var r report.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &r, nil
}

// ListSessions returns summaries of all archived sessions, newest
// first.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	query := `
		SELECT session_id, operator, tracker_id, pointer_id,
		       working_volume_id, phantom_id, start_time_ns,
		       duration_secs, locations
		FROM sessions
		ORDER BY start_time_ns DESC
	`
	rows, err := s.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var startNs int64
		var durationSecs float64
		var locations string
		if err := rows.Scan(
			&sum.SessionID,
			&sum.Operator,
			&sum.TrackerID,
			&sum.PointerID,
			&sum.WorkingVolumeID,
			&sum.PhantomID,
			&startNs,
			&durationSecs,
			&locations,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Start = time.Unix(0, startNs).UTC()
		sum.Duration = time.Duration(durationSecs * float64(time.Second))
		if locations != "" {
			sum.Locations = strings.Split(locations, ",")
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// DeleteSession removes one archived session.
func (s *Store) DeleteSession(sessionID string) error {
	res, err := s.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}
