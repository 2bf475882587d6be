// Package dashboard holds the live station state behind the HTTP API and
// orchestrates imports, toggles and snapshot publishing over it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/tabular"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
)

var (
	// ErrUnknownStation is returned when a toggle names a station ID that is
	// not in the current import.
	ErrUnknownStation = errors.New("unknown station")

	// ErrNoSnapshotStore is returned by snapshot operations when the store
	// was built without one.
	ErrNoSnapshotStore = errors.New("no snapshot store configured")
)

// SnapshotStore publishes and reads snapshots. Both the local snapshot
// service and the remote HTTP client implement it.
type SnapshotStore interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
	Publish(ctx context.Context, in domain.SnapshotInput) (domain.Snapshot, error)
}

// ReadinessChecker is optionally implemented by a SnapshotStore.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ImportSummary reports what a full import did.
type ImportSummary struct {
	Imported   int                 `json:"imported"`
	Dropped    []domain.DroppedRow `json:"dropped"`
	Feeders    int                 `json:"feeders"`
	FeedersOff int                 `json:"feedersOff"`
}

// Store is the single writer of dashboard state. Reads recompute the
// aggregation from the current stations and overrides on every call.
type Store struct {
	mu        sync.RWMutex
	stations  []domain.Station
	overrides domain.FeederOverrides

	engine    domain.Engine
	snapshots SnapshotStore
	logger    *slog.Logger
	metrics   *observability.Metrics
	loaded    atomic.Bool
}

// NewStore creates an empty store. A nil engine selects domain.DefaultEngine;
// snapshots may be nil when publishing is not wanted.
func NewStore(engine domain.Engine, snapshots SnapshotStore, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if engine == nil {
		engine = domain.DefaultEngine
	}
	return &Store{
		overrides: domain.FeederOverrides{},
		engine:    engine,
		snapshots: snapshots,
		logger:    logger,
		metrics:   metrics,
	}
}

// Load parses r in the given format and replaces the state with the result.
// On a parse error the previous state is kept.
func (s *Store) Load(r io.Reader, format tabular.Format) (ImportSummary, error) {
	rows, err := tabular.Parse(r, format)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("import %s: %w", format, err)
	}
	return s.Import(string(format), rows), nil
}

// Import normalizes rows and replaces every station and every feeder
// override. Toggles made since the previous import are discarded.
func (s *Store) Import(source string, rows []domain.RawRow) ImportSummary {
	res := domain.NormalizeRows(rows)

	s.mu.Lock()
	s.stations = res.Stations
	s.overrides = res.Overrides
	s.updateGauges()
	s.mu.Unlock()
	s.loaded.Store(true)

	summary := ImportSummary{
		Imported:   len(res.Stations),
		Dropped:    res.Dropped,
		Feeders:    countFeeders(res.Stations),
		FeedersOff: countOff(res.Overrides),
	}
	if summary.Dropped == nil {
		summary.Dropped = []domain.DroppedRow{}
	}

	s.metrics.Imports.WithLabelValues(source).Inc()
	s.metrics.RowsImported.Add(float64(summary.Imported))
	s.metrics.RowsDropped.Add(float64(len(summary.Dropped)))
	for _, d := range summary.Dropped {
		s.logger.Debug("row dropped", "index", d.Index, "reason", d.Reason)
	}
	if len(summary.Dropped) > 0 {
		s.logger.Warn("rows dropped during import", "source", source, "dropped", len(summary.Dropped))
	}
	s.logger.Info("stations imported",
		"source", source,
		"stations", summary.Imported,
		"feeders", summary.Feeders,
	)
	return summary
}

// MarkLoaded flags the store ready without importing anything, for a start
// with no default data source.
func (s *Store) MarkLoaded() {
	s.loaded.Store(true)
}

// ToggleFeeder flips the feeder override and returns the new value.
func (s *Store) ToggleFeeder(feeder string) bool {
	s.mu.Lock()
	off := s.overrides.Toggle(feeder)
	s.updateGauges()
	s.mu.Unlock()

	s.metrics.Toggles.WithLabelValues("feeder").Inc()
	s.logger.Info("feeder toggled", "feeder", feeder, "off", off)
	return off
}

// ToggleStation flips the station's own outage flag and returns the new value.
func (s *Store) ToggleStation(id string) (bool, error) {
	s.mu.Lock()
	out, found := domain.ToggleStation(s.stations, id)
	if found {
		s.updateGauges()
	}
	s.mu.Unlock()

	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	s.metrics.Toggles.WithLabelValues("station").Inc()
	s.logger.Info("station toggled", "id", id, "out", out)
	return out, nil
}

// Stations returns a copy of the current stations in import order.
func (s *Store) Stations() []domain.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stations)
}

// Overrides returns a copy of the current feeder overrides.
func (s *Store) Overrides() domain.FeederOverrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides.Clone()
}

func (s *Store) Aggregate() domain.Aggregation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Aggregate(s.stations, s.overrides)
}

func (s *Store) View(q domain.Query) domain.Page {
	return s.engine.View(s.Aggregate(), q)
}

// Export writes the current stations as CSV.
func (s *Store) Export(w io.Writer) error {
	return tabular.WriteCSV(w, s.Stations())
}

// Publish sends the current totals to the snapshot store.
func (s *Store) Publish(ctx context.Context) (domain.Snapshot, error) {
	if s.snapshots == nil {
		return domain.Snapshot{}, ErrNoSnapshotStore
	}
	totals := s.Aggregate().Totals
	snap, err := s.snapshots.Publish(ctx, domain.SnapshotFromTotals(totals))
	if err != nil {
		s.logger.Error("publish snapshot failed", "error", err)
		return domain.Snapshot{}, fmt.Errorf("publish snapshot: %w", err)
	}
	return snap, nil
}

// Remote reads the last published snapshot.
func (s *Store) Remote(ctx context.Context) (domain.Snapshot, error) {
	if s.snapshots == nil {
		return domain.Snapshot{}, ErrNoSnapshotStore
	}
	snap, err := s.snapshots.Fetch(ctx)
	if err != nil {
		s.logger.Error("read snapshot failed", "error", err)
		return domain.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

// CheckReadiness returns nil once the initial data source has been handled
// and the snapshot store, if it can tell, is reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if !s.loaded.Load() {
		return errors.New("stations have not been loaded yet")
	}
	if rc, ok := s.snapshots.(ReadinessChecker); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// updateGauges must be called with mu held.
func (s *Store) updateGauges() {
	totals := s.engine.Aggregate(s.stations, s.overrides).Totals
	s.metrics.Stations.Set(float64(len(s.stations)))
	s.metrics.TotalConsumers.Set(float64(totals.Total))
	s.metrics.AffectedConsumers.Set(float64(totals.Affected))
	s.metrics.AffectedPct.Set(totals.Pct)
	s.metrics.FeedersOff.Set(float64(countOff(s.overrides)))
}

func countFeeders(stations []domain.Station) int {
	seen := make(map[string]struct{})
	for _, st := range stations {
		seen[st.Feeder] = struct{}{}
	}
	return len(seen)
}

func countOff(o domain.FeederOverrides) int {
	n := 0
	for _, off := range o {
		if off {
			n++
		}
	}
	return n
}
