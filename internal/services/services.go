package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tripdesk/apiserver/internal/metrics"
	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/types"
)

var tracer = otel.Tracer("github.com/tripdesk/apiserver/internal/services")

// TxRunner runs fn as one all-or-nothing unit.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Emitter receives trip request status changes after they are persisted.
type Emitter interface {
	Emit(ctx context.Context, ev types.TripRequestStatusChanged)
}

// LookupCache caches derived destination lists.
type LookupCache interface {
	Get(ctx context.Context, field string) ([]string, bool, error)
	Set(ctx context.Context, field string, values []string) error
	Invalidate(ctx context.Context) error
}

type options struct {
	metrics  *metrics.Metrics
	now      func() time.Time
	hashCost int
	cache    LookupCache
}

// Option configures a service.
type Option func(*options)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock overrides the time source used for date validation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithHashCost sets the bcrypt cost for new password hashes.
func WithHashCost(cost int) Option {
	return func(o *options) {
		o.hashCost = cost
	}
}

func WithLookupCache(c LookupCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// emailTaken converts a duplicate email from the store into a field error.
func emailTaken(err error) error {
	if errors.Is(err, store.ErrDuplicateEmail) {
		return types.NewFieldError("email", "unique", "the email has already been taken")
	}
	return err
}

// merge folds the fields of extra into v.
func merge(v *types.ValidationError, err error) error {
	var extra *types.ValidationError
	if errors.As(err, &extra) {
		v.Fields = append(v.Fields, extra.Fields...)
		return nil
	}
	return err
}
