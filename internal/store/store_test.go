package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/once-storefront/internal/catalog"
	"github.com/xenking/once-storefront/internal/domain/product"
)

// --- Fakes ---

type mockFetcher struct {
	mu    sync.Mutex
	env   product.Envelope
	err   error
	calls int
}

func (m *mockFetcher) FetchProduct(_ context.Context) (product.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.env, m.err
}

func (m *mockFetcher) set(env product.Envelope, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env, m.err = env, err
}

type fetchResult struct {
	env product.Envelope
	err error
}

// gatedFetcher blocks every call until the test sends its result.
type gatedFetcher struct {
	calls chan chan fetchResult
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan chan fetchResult)}
}

func (g *gatedFetcher) FetchProduct(ctx context.Context) (product.Envelope, error) {
	reply := make(chan fetchResult)
	select {
	case g.calls <- reply:
	case <-ctx.Done():
		return product.Envelope{}, ctx.Err()
	}
	r := <-reply
	return r.env, r.err
}

// --- Helpers ---

func newTestProduct(sku, name string, price int64) product.Product {
	return product.Product{
		Name:      name,
		SKU:       sku,
		BrandName: "Once",
		Price:     decimal.NewFromInt(price),
		Image:     "http://x/" + sku + ".jpg",
		Images:    []string{"http://x/" + sku + ".jpg"},
	}
}

func okEnvelope(p product.Product) product.Envelope {
	return product.Envelope{Status: 1, Message: "ok", Data: &p}
}

func mustProduct(t *testing.T, s State) product.Product {
	t.Helper()
	p, ok := s.Product()
	require.True(t, ok, "state is not loaded")
	return p
}

func receive(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for state")
		return State{}
	}
}

// --- Tests ---

func TestNew_StartsEmpty(t *testing.T) {
	s := New(&mockFetcher{})

	assert.False(t, s.State().IsLoaded())
	assert.Equal(t, Empty, s.State())
	assert.Zero(t, s.Version())

	_, ok := s.State().Product()
	assert.False(t, ok)
}

func TestLoad_Success(t *testing.T) {
	p := newTestProduct("ABC123", "Dress", 25)
	f := &mockFetcher{env: okEnvelope(p)}
	s := New(f)

	s.Load(context.Background())

	assert.Equal(t, p, mustProduct(t, s.State()))
	assert.Equal(t, uint64(1), s.Version())
	assert.Equal(t, 1, f.calls)
}

func TestLoad_SuccessOverwrites(t *testing.T) {
	f := &mockFetcher{env: okEnvelope(newTestProduct("A", "Dress", 25))}
	s := New(f)
	s.Load(context.Background())

	next := newTestProduct("A", "Dress", 20)
	f.set(okEnvelope(next), nil)
	s.Load(context.Background())

	assert.Equal(t, next, mustProduct(t, s.State()))
	assert.Equal(t, uint64(2), s.Version())
}

func TestLoad_FailureKeepsState(t *testing.T) {
	loaded := newTestProduct("ABC123", "Dress", 25)

	tests := []struct {
		name string
		env  product.Envelope
		err  error
	}{
		{name: "network error", err: &catalog.NetworkError{Err: errors.New("connection reset")}},
		{name: "http status", err: &catalog.StatusError{StatusCode: http.StatusBadGateway}},
		{name: "decode error", err: &catalog.DecodeError{Err: errors.New("unexpected EOF")}},
		{name: "status zero", env: product.Envelope{Status: 0, Message: "disabled", Data: &loaded}},
		{name: "no payload", env: product.Envelope{Status: 1, Message: "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name+" from empty", func(t *testing.T) {
			s := New(&mockFetcher{env: tt.env, err: tt.err})

			s.Load(context.Background())

			assert.Equal(t, Empty, s.State())
			assert.Zero(t, s.Version())
		})

		t.Run(tt.name+" from loaded", func(t *testing.T) {
			f := &mockFetcher{env: okEnvelope(loaded)}
			s := New(f)
			s.Load(context.Background())
			before := s.State()

			f.set(tt.env, tt.err)
			s.Load(context.Background())

			assert.Equal(t, before, s.State())
			assert.Equal(t, loaded, mustProduct(t, s.State()))
			assert.Equal(t, uint64(1), s.Version())
		})
	}
}

func TestLoad_FailureDoesNotNotify(t *testing.T) {
	s := New(&mockFetcher{err: errors.New("down")})
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Load(context.Background())

	select {
	case st := <-ch:
		t.Fatalf("unexpected notification: %+v", st)
	default:
	}
}

func TestLoad_ConcurrentLastPublishWins(t *testing.T) {
	first := newTestProduct("A", "Dress", 25)
	second := newTestProduct("A", "Dress", 19)

	tests := []struct {
		name string
		// resolveFirstLast resolves the earlier call after the later one.
		resolveFirstLast bool
		want             product.Product
	}{
		{name: "later call resolves last", resolveFirstLast: false, want: second},
		{name: "earlier call resolves last", resolveFirstLast: true, want: first},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGatedFetcher()
			s := New(g)
			ch, unsubscribe := s.Subscribe()
			defer unsubscribe()

			ctx := context.Background()
			var wg sync.WaitGroup

			wg.Add(1)
			go func() { defer wg.Done(); s.Load(ctx) }()
			replyFirst := <-g.calls

			wg.Add(1)
			go func() { defer wg.Done(); s.Load(ctx) }()
			replySecond := <-g.calls

			if tt.resolveFirstLast {
				replySecond <- fetchResult{env: okEnvelope(second)}
				assert.Equal(t, second, mustProduct(t, receive(t, ch)))
				replyFirst <- fetchResult{env: okEnvelope(first)}
				assert.Equal(t, first, mustProduct(t, receive(t, ch)))
			} else {
				replyFirst <- fetchResult{env: okEnvelope(first)}
				assert.Equal(t, first, mustProduct(t, receive(t, ch)))
				replySecond <- fetchResult{env: okEnvelope(second)}
				assert.Equal(t, second, mustProduct(t, receive(t, ch)))
			}
			wg.Wait()

			assert.Equal(t, tt.want, mustProduct(t, s.State()))
			assert.Equal(t, uint64(2), s.Version())
		})
	}
}

func TestLoad_ConcurrentFailureDoesNotRevert(t *testing.T) {
	g := newGatedFetcher()
	s := New(g)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() { defer wg.Done(); s.Load(ctx) }()
	replyFirst := <-g.calls
	go func() { defer wg.Done(); s.Load(ctx) }()
	replySecond := <-g.calls

	p := newTestProduct("A", "Dress", 25)
	replySecond <- fetchResult{env: okEnvelope(p)}
	receive(t, ch)
	replyFirst <- fetchResult{err: &catalog.NetworkError{Err: errors.New("timeout")}}
	wg.Wait()

	assert.Equal(t, p, mustProduct(t, s.State()))
	assert.Equal(t, uint64(1), s.Version())
}

func TestLoad_ManyConcurrent(t *testing.T) {
	f := &mockFetcher{env: okEnvelope(newTestProduct("A", "Dress", 25))}
	s := New(f)

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Load(context.Background())
			_ = s.State()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(n), s.Version())
	assert.Equal(t, n, f.calls)
	assert.True(t, s.State().IsLoaded())
}

func TestSubscribe_MultipleReaders(t *testing.T) {
	p := newTestProduct("A", "Dress", 25)
	s := New(&mockFetcher{env: okEnvelope(p)})

	ch1, unsub1 := s.Subscribe()
	defer unsub1()
	ch2, unsub2 := s.Subscribe()
	defer unsub2()

	s.Load(context.Background())

	assert.Equal(t, p, mustProduct(t, receive(t, ch1)))
	assert.Equal(t, p, mustProduct(t, receive(t, ch2)))
}

func TestSubscribe_SlowReaderGetsLatest(t *testing.T) {
	f := &mockFetcher{}
	s := New(f)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	for i := int64(1); i <= 3; i++ {
		f.set(okEnvelope(newTestProduct("A", "Dress", i)), nil)
		s.Load(context.Background())
	}

	got := mustProduct(t, receive(t, ch))
	assert.True(t, got.Price.Equal(decimal.NewFromInt(3)))

	select {
	case st := <-ch:
		t.Fatalf("unexpected extra notification: %+v", st)
	default:
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := New(&mockFetcher{env: okEnvelope(newTestProduct("A", "Dress", 25))})
	ch, unsubscribe := s.Subscribe()

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	s.Load(context.Background())
	assert.True(t, s.State().IsLoaded())
}

func TestLoad_CatalogScenarios(t *testing.T) {
	const dressBody = `{"status":1,"message":"ok","data":{"name":"Dress","sku":"ABC123","brand_name":"Once",` +
		`"price":25.0,"description":"<b>nice</b>","image":"http://x/1.jpg","images":["http://x/1.jpg","http://x/2.jpg"]}}`

	t.Run("loaded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(dressBody))
		}))
		defer srv.Close()

		c, err := catalog.New(catalog.Target{BaseURL: srv.URL, Path: "rest/V1/productdetails/6701/253620", Lang: "en", Store: "KWD"})
		require.NoError(t, err)
		s := New(c)

		s.Load(context.Background())

		p := mustProduct(t, s.State())
		assert.True(t, p.Price.Equal(decimal.NewFromFloat(25.0)))
		assert.Len(t, p.Gallery(), 2)
		assert.Equal(t, "nice", p.DescriptionText())
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, err := catalog.New(catalog.Target{BaseURL: srv.URL, Path: "rest/V1/productdetails/6701/253620"})
		require.NoError(t, err)
		s := New(c)

		s.Load(context.Background())

		assert.Equal(t, Empty, s.State())
	})
}

func TestState_ReadersCannotMutate(t *testing.T) {
	p := newTestProduct("A", "Dress", 25)
	s := New(&mockFetcher{env: okEnvelope(p)})
	s.Load(context.Background())

	got := mustProduct(t, s.State())
	got.Images[0] = "mutated"
	got.Gallery()[0] = "mutated"
	gallery := mustProduct(t, s.State()).Gallery()
	gallery[0] = "mutated"

	assert.Equal(t, p, mustProduct(t, s.State()))
	assert.Equal(t, "http://x/A.jpg", mustProduct(t, s.State()).Images[0])
}

func TestLoaded_CopiesProduct(t *testing.T) {
	p := newTestProduct("A", "Dress", 25)
	st := Loaded(p)

	p.Images[0] = "mutated"

	assert.Equal(t, "http://x/A.jpg", mustProduct(t, st).Images[0])
}
