// Package snapshot stores the last published outage aggregate under a single
// key and hands it back to readers.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
)

// Key is the one KV key every publish overwrites.
const Key = "outage:snapshot"

// ErrNotFound is returned by a KV when the key has never been written.
var ErrNotFound = errors.New("snapshot not found")

// KV is the byte store behind the service.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by KV backends that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Notifier is told about every snapshot that was stored.
type Notifier interface {
	SnapshotPublished(ctx context.Context, snap domain.Snapshot) error
}

// Service reads and publishes snapshots.
type Service struct {
	kv       KV
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a snapshot service. notifier may be nil.
func NewService(kv KV, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{kv: kv, notifier: notifier, logger: logger, metrics: metrics}
}

// Fetch returns the stored snapshot, or the zero snapshot with a nil
// UpdatedAt when nothing has been published yet.
func (s *Service) Fetch(ctx context.Context) (domain.Snapshot, error) {
	data, err := s.kv.Get(ctx, Key)
	if errors.Is(err, ErrNotFound) {
		s.metrics.SnapshotReads.WithLabelValues("empty").Inc()
		return domain.Snapshot{}, nil
	}
	if err != nil {
		s.metrics.SnapshotReads.WithLabelValues("error").Inc()
		return domain.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.metrics.SnapshotReads.WithLabelValues("error").Inc()
		return domain.Snapshot{}, fmt.Errorf("decode stored snapshot: %w", err)
	}
	s.metrics.SnapshotReads.WithLabelValues("hit").Inc()
	return snap, nil
}

// Publish completes the input, overwrites the stored snapshot and notifies.
// A malformed input is rejected with domain.ErrMalformedSnapshot before
// anything is written. Notification failures are logged, not returned.
func (s *Service) Publish(ctx context.Context, in domain.SnapshotInput) (domain.Snapshot, error) {
	snap, err := domain.CompleteSnapshot(in)
	if err != nil {
		s.metrics.SnapshotPublish.WithLabelValues("malformed").Inc()
		return domain.Snapshot{}, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.metrics.SnapshotPublish.WithLabelValues("error").Inc()
		return domain.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		s.metrics.SnapshotPublish.WithLabelValues("error").Inc()
		return domain.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	s.metrics.SnapshotPublish.WithLabelValues("success").Inc()
	s.logger.Info("snapshot published",
		"affected", snap.Affected,
		"total", snap.Total,
		"pct", snap.Pct,
	)

	if s.notifier != nil {
		if err := s.notifier.SnapshotPublished(ctx, snap); err != nil {
			s.metrics.NotifyFailures.Inc()
			s.logger.Warn("snapshot notification failed", "error", err)
		}
	}
	return snap, nil
}

// CheckReadiness pings the backing store when it supports it.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if p, ok := s.kv.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
	}
	return nil
}
