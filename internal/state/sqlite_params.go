package state

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// LogParam records a training parameter. Logging a key twice keeps the
// latest value.
func (s *SQLiteStore) LogParam(runID, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO run_params (run_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value`,
		runID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to log param %s: %w", key, err)
	}
	return nil
}

// LogMetric records an evaluation metric. Logging a key twice keeps the
// latest value.
func (s *SQLiteStore) LogMetric(runID, key string, value float64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO run_metrics (run_id, key, value, logged_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value, logged_at = excluded.logged_at`,
		runID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", key, err)
	}
	return nil
}

// GetParams returns a run's parameters ordered by key.
func (s *SQLiteStore) GetParams(runID string) ([]core.Param, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT key, value FROM run_params WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get params: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var params []core.Param
	for rows.Next() {
		var p core.Param
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// GetMetrics returns a run's metrics ordered by key.
func (s *SQLiteStore) GetMetrics(runID string) ([]core.Metric, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT key, value FROM run_metrics WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metrics []core.Metric
	for rows.Next() {
		var m core.Metric
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
