package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/once-storefront/internal/catalog"
	"github.com/xenking/once-storefront/internal/handler"
	"github.com/xenking/once-storefront/internal/store"
	"github.com/xenking/once-storefront/pkg/health"
	"github.com/xenking/once-storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, loads the product once, serves HTTP and
// handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	return run(ctx, lg, telemetry{
		tracerProvider: m.TracerProvider(),
		meterProvider:  m.MeterProvider(),
	}, cfg)
}

// telemetry holds the providers Run takes from app.Telemetry.
type telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func run(ctx context.Context, lg *zap.Logger, m telemetry, cfg *Config) error {
	ctx = zctx.Base(ctx, lg)

	client, err := catalog.New(cfg.Catalog.Target(),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithTracerProvider(m.tracerProvider),
		catalog.WithMeterProvider(m.meterProvider),
	)
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", client.URL()),
	)

	products := store.New(client, store.WithMeterProvider(m.meterProvider))

	// Health checks.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if cfg.Catalog.RequireProduct {
		healthSvc.AddReadinessCheck("product", time.Second, productLoadedCheck(products),
			health.WithThresholds(1, 1),
			health.StartUnhealthy(),
		)
	}
	healthSvc.Start(ctx, cfg.Health.Interval)

	h := handler.NewHandler(handler.HandlerConfig{ShareURL: cfg.ShareURL}, products)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.Recovery(),
				httpmiddleware.RequestID(),
				httpmiddleware.LogRequests(),
			),
			"storefront",
			otelhttp.WithTracerProvider(m.tracerProvider),
			otelhttp.WithMeterProvider(m.meterProvider),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Initial load, as when the product screen becomes active.
	g.Go(func() error {
		products.Load(gctx)
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		h.Wait()
		healthSvc.Stop()
		return nil
	})

	healthSvc.SetReady(true)
	return g.Wait()
}

// productLoadedCheck fails until the store holds a product.
func productLoadedCheck(s *store.Store) health.CheckFunc {
	return func(context.Context) error {
		if !s.State().IsLoaded() {
			return errors.New("product not loaded")
		}
		return nil
	}
}
