// Package instrumented wraps a storage.Collection with Prometheus metrics
// and debug logging. Errors pass through unchanged.
package instrumented

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
)

// Operation labels.
const (
	OpAddOrReplace = "add_or_replace"
	OpRemove       = "remove"
	OpFindByKey    = "find_by_key"
	OpScan         = "scan"
	OpEnsure       = "ensure_collection"
)

// Metrics holds the storage metrics.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Scanned    prometheus.Counter
}

// NewMetrics creates and registers the storage metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idm_docstore_storage_operations_total",
			Help: "Storage operations by operation and result",
		}, []string{"op", "result"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idm_docstore_storage_operation_duration_seconds",
			Help:    "Storage operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Scanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "idm_docstore_storage_scanned_accounts_total",
			Help: "Accounts yielded by predicate scans",
		}),
	}
}

// Collection decorates a storage.Collection.
type Collection struct {
	next    storage.Collection
	metrics *Metrics
	logger  *slog.Logger
}

// Wrap decorates next. A nil logger falls back to slog.Default().
func Wrap(next storage.Collection, metrics *Metrics, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{next: next, metrics: metrics, logger: logger}
}

// Unwrap returns the decorated collection.
func (c *Collection) Unwrap() storage.Collection {
	return c.next
}

func (c *Collection) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	result := "ok"
	if err != nil {
		result = "error"
		c.logger.DebugContext(ctx, "storage operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	}
	c.metrics.Operations.WithLabelValues(op, result).Inc()
	c.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// AddOrReplace delegates and records the outcome.
func (c *Collection) AddOrReplace(ctx context.Context, account *domain.Account) error {
	start := time.Now()
	err := c.next.AddOrReplace(ctx, account)
	c.observe(ctx, OpAddOrReplace, start, err, "account_id", account.ID())
	return err
}

// Remove delegates and records the outcome.
func (c *Collection) Remove(ctx context.Context, account *domain.Account) error {
	start := time.Now()
	err := c.next.Remove(ctx, account)
	c.observe(ctx, OpRemove, start, err, "account_id", account.ID())
	return err
}

// FindByKey delegates and records the outcome.
func (c *Collection) FindByKey(ctx context.Context, id string) (*domain.Account, bool, error) {
	start := time.Now()
	account, ok, err := c.next.FindByKey(ctx, id)
	c.observe(ctx, OpFindByKey, start, err, "account_id", id)
	return account, ok, err
}

// Scan delegates and records the outcome once the range ends.
func (c *Collection) Scan(ctx context.Context, match storage.Predicate) iter.Seq2[*domain.Account, error] {
	inner := c.next.Scan(ctx, match)
	return func(yield func(*domain.Account, error) bool) {
		start := time.Now()
		var scanErr error
		defer func() { c.observe(ctx, OpScan, start, scanErr) }()

		for account, err := range inner {
			if err != nil {
				scanErr = err
			} else {
				c.metrics.Scanned.Inc()
			}
			if !yield(account, err) {
				return
			}
		}
	}
}

// EnsureCollection provisions the decorated collection if it supports it.
func (c *Collection) EnsureCollection(ctx context.Context) error {
	p, ok := c.next.(storage.Provisioner)
	if !ok {
		return nil
	}
	start := time.Now()
	err := p.EnsureCollection(ctx)
	c.observe(ctx, OpEnsure, start, err)
	return err
}
