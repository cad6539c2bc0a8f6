// Package sink publishes successful rate results to history and event
// backends. Sinks never change the result printed by a run.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bullionrates/internal/rates"
)

// Snapshot is one published rate result.
type Snapshot struct {
	ID         uuid.UUID     `json:"id"`
	RunID      string        `json:"run_id"`
	ObservedAt time.Time     `json:"observed_at"`
	RecordedAt time.Time     `json:"recorded_at"`
	Rates      rates.Success `json:"rates"`
}

// NewSnapshot wraps a success payload with identity and timing.
func NewSnapshot(runID string, s rates.Success, recordedAt time.Time) (Snapshot, error) {
	observed, err := time.Parse(time.RFC3339, s.Timestamp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse result timestamp: %w", err)
	}
	return Snapshot{
		ID:         uuid.New(),
		RunID:      runID,
		ObservedAt: observed.UTC(),
		RecordedAt: recordedAt.UTC(),
		Rates:      s,
	}, nil
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, s Snapshot) error
	Close() error
}

// Multi fans a snapshot out to every sink. A failing sink does not stop
// the others; all errors are joined.
type Multi struct {
	Sinks  []Sink
	Logger *slog.Logger
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Publish(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, sk := range m.Sinks {
		if err := sk.Publish(ctx, s); err != nil {
			m.logger().Warn("sink publish failed", "sink", sk.Name(), "snapshot_id", s.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
			continue
		}
		m.logger().Debug("snapshot published", "sink", sk.Name(), "snapshot_id", s.ID)
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, sk := range m.Sinks {
		if err := sk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of configured sinks.
func (m *Multi) Len() int { return len(m.Sinks) }

func (m *Multi) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
