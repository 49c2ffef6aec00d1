package configstore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/txn2/gamedna/pkg/configstore"

// Outcome attribute values.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeLocked      = "locked"
	outcomeConflict    = "conflict"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// InstrumentedStore wraps a Store and records an operation counter and a
// latency histogram for every call.
type InstrumentedStore struct {
	next       Store
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	backend    attribute.KeyValue
}

// Instrument wraps next using the global meter provider.
func Instrument(next Store) (*InstrumentedStore, error) {
	return InstrumentWithMeter(next, otel.Meter(meterName))
}

// InstrumentWithMeter wraps next using meter.
func InstrumentWithMeter(next Store, meter metric.Meter) (*InstrumentedStore, error) {
	operations, err := meter.Int64Counter(
		"gamedna.store.operations",
		metric.WithDescription("Number of config store operations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"gamedna.store.duration",
		metric.WithDescription("Duration of config store operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		next:       next,
		operations: operations,
		duration:   duration,
		backend:    attribute.String("backend", next.Mode()),
	}, nil
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() Store {
	return s.next
}

func (s *InstrumentedStore) record(ctx context.Context, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		s.backend,
		attribute.String("outcome", outcomeOf(err)),
	)
	s.operations.Add(ctx, 1, attrs)
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrLocked):
		return outcomeLocked
	case errors.Is(err, ErrConflict):
		return outcomeConflict
	case errors.Is(err, ErrUnavailable):
		return outcomeUnavailable
	default:
		return outcomeError
	}
}

// Create implements Store.
func (s *InstrumentedStore) Create(ctx context.Context, cfg *Config) (*Config, error) {
	start := time.Now()
	out, err := s.next.Create(ctx, cfg)
	s.record(ctx, OpCreate, start, err)
	return out, err
}

// Read implements Store.
func (s *InstrumentedStore) Read(ctx context.Context, id string) (*Config, error) {
	start := time.Now()
	out, err := s.next.Read(ctx, id)
	s.record(ctx, OpRead, start, err)
	return out, err
}

// Update implements Store.
func (s *InstrumentedStore) Update(ctx context.Context, cfg *Config) (*Config, error) {
	start := time.Now()
	out, err := s.next.Update(ctx, cfg)
	s.record(ctx, OpUpdate, start, err)
	return out, err
}

// Delete implements Store.
func (s *InstrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.record(ctx, OpDelete, start, err)
	return err
}

// List implements Store.
func (s *InstrumentedStore) List(ctx context.Context, filters ListFilters, page Pagination) ([]*Config, int, error) {
	start := time.Now()
	out, total, err := s.next.List(ctx, filters, page)
	s.record(ctx, OpList, start, err)
	return out, total, err
}

// GetVersionHistory implements Store.
func (s *InstrumentedStore) GetVersionHistory(ctx context.Context, configID string) ([]*VersionSnapshot, error) {
	start := time.Now()
	out, err := s.next.GetVersionHistory(ctx, configID)
	s.record(ctx, OpHistory, start, err)
	return out, err
}

// RollbackToVersion implements Store.
func (s *InstrumentedStore) RollbackToVersion(ctx context.Context, configID string, versionNumber int64, actor string) (*Config, error) {
	start := time.Now()
	out, err := s.next.RollbackToVersion(ctx, configID, versionNumber, actor)
	s.record(ctx, OpRollback, start, err)
	return out, err
}

// PublishVersion implements Store.
func (s *InstrumentedStore) PublishVersion(ctx context.Context, configID, actor string) (*Config, error) {
	start := time.Now()
	out, err := s.next.PublishVersion(ctx, configID, actor)
	s.record(ctx, OpPublish, start, err)
	return out, err
}

// Clone implements Store.
func (s *InstrumentedStore) Clone(ctx context.Context, id, newName, actor string) (*Config, error) {
	start := time.Now()
	out, err := s.next.Clone(ctx, id, newName, actor)
	s.record(ctx, OpClone, start, err)
	return out, err
}

// Mode returns the wrapped store's mode.
func (s *InstrumentedStore) Mode() string {
	return s.next.Mode()
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}

// Verify interface compliance.
var _ Store = (*InstrumentedStore)(nil)
