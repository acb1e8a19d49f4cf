// Package store holds the storefront's current product as observable state.
//
// The state is either Empty or Loaded. Load fetches the product once and
// publishes it only when the catalog call succeeded, the envelope status is
// truthy and a payload is present; every other outcome leaves the state as it
// was. Concurrent Load calls are not coordinated: each publishes on its own,
// and the last publish wins.
package store

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/once-storefront/internal/domain/product"
)

// Fetcher retrieves the catalog envelope for the configured product.
type Fetcher interface {
	FetchProduct(ctx context.Context) (product.Envelope, error)
}

// State is a snapshot of the store. The zero value is Empty.
type State struct {
	product *product.Product
}

// Empty is the state before the first successful load.
var Empty = State{}

// Loaded returns the state holding a copy of p.
func Loaded(p product.Product) State {
	p = p.Clone()
	return State{product: &p}
}

// IsLoaded reports whether a product has been published.
func (s State) IsLoaded() bool {
	return s.product != nil
}

// Product returns a copy of the published product, if any.
func (s State) Product() (product.Product, bool) {
	if s.product == nil {
		return product.Product{}, false
	}
	return s.product.Clone(), true
}

// Load outcomes, used as the "outcome" metric attribute.
const (
	outcomeLoaded   = "loaded"
	outcomeRejected = "rejected"
	outcomeEmpty    = "empty"
	outcomeFailed   = "failed"
)

// Option configures a Store.
type Option func(*Store)

// WithMeterProvider sets the meter provider for load counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) { s.mp = mp }
}

// Store is the observable holder of the latest successfully fetched product.
type Store struct {
	fetcher Fetcher
	mp      metric.MeterProvider
	loads   metric.Int64Counter

	mu      sync.RWMutex
	state   State
	version uint64
	subs    map[*subscriber]struct{}
}

// subscriber receives state changes on a channel with a single slot. A
// pending, undelivered state is replaced by a newer one.
type subscriber struct {
	ch chan State
}

// New creates an Empty store that loads through fetcher.
func New(fetcher Fetcher, opts ...Option) *Store {
	s := &Store{
		fetcher: fetcher,
		subs:    make(map[*subscriber]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.mp == nil {
		s.mp = otel.GetMeterProvider()
	}

	meter := s.mp.Meter("github.com/xenking/once-storefront/internal/store")
	loads, err := meter.Int64Counter("store.loads",
		metric.WithDescription("Product load attempts by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	s.loads = loads
	return s
}

// Load fetches the product once and publishes it on success. Failures are
// logged and otherwise ignored: the current state is left unchanged.
//
// Load blocks until the fetch completes; run it in a goroutine to load in
// the background. An in-flight Load is never cancelled by another call.
func (s *Store) Load(ctx context.Context) {
	lg := zctx.From(ctx)

	env, err := s.fetcher.FetchProduct(ctx)
	switch {
	case err != nil:
		s.count(ctx, outcomeFailed)
		lg.Warn("Product load failed, keeping current state", zap.Error(err))
	case !env.OK():
		s.count(ctx, outcomeRejected)
		lg.Warn("Catalog rejected product request, keeping current state",
			zap.Int("status", env.Status),
			zap.String("message", env.Message),
		)
	case env.Data == nil:
		s.count(ctx, outcomeEmpty)
		lg.Warn("Catalog response has no product, keeping current state",
			zap.Int("status", env.Status),
		)
	default:
		version := s.publish(*env.Data)
		s.count(ctx, outcomeLoaded)
		lg.Info("Product loaded",
			zap.String("sku", env.Data.SKU),
			zap.String("name", env.Data.Name),
			zap.Uint64("version", version),
		)
	}
}

func (s *Store) count(ctx context.Context, outcome string) {
	if s.loads == nil {
		return
	}
	s.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// publish stores p and notifies subscribers, returning the new version.
func (s *Store) publish(p product.Product) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Loaded(p)
	s.version++
	for sub := range s.subs {
		sub.offer(s.state)
	}
	return s.version
}

// offer delivers st, replacing any state the subscriber has not read yet.
// Must be called with the store lock held so offers do not interleave.
func (sub *subscriber) offer(st State) {
	for {
		select {
		case sub.ch <- st:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Version returns the number of publishes so far. It is 0 while Empty.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers for state changes. Every publish after the call is
// offered to the returned channel; a reader that falls behind only sees the
// latest state. The returned function unsubscribes and closes the channel;
// it is safe to call more than once.
func (s *Store) Subscribe() (<-chan State, func()) {
	sub := &subscriber{ch: make(chan State, 1)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			close(sub.ch)
			s.mu.Unlock()
		})
	}
}
