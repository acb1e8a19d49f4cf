// Command catalog-stub serves a canned catalog response so the storefront can
// run without the real catalog API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/once-storefront/fixtures"
	"github.com/xenking/once-storefront/internal/domain/product"
)

func main() {
	var (
		addr        string
		path        string
		fixtureFile string
		status      int
		delay       time.Duration
	)

	flag.StringVar(&addr, "addr", "127.0.0.1:8081", "listen address")
	flag.StringVar(&path, "path", "/rest/V1/productdetails/6701/253620", "product details path")
	flag.StringVar(&fixtureFile, "fixture", "", "catalog response file (defaults to the embedded fixture)")
	flag.IntVar(&status, "status", http.StatusOK, "HTTP status to respond with")
	flag.DurationVar(&delay, "delay", 0, "artificial response delay")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, addr, path, fixtureFile, status, delay); err != nil {
		slog.Error("catalog stub failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, path, fixtureFile string, status int, delay time.Duration) error {
	body := fixtures.ProductEnvelope
	if fixtureFile != "" {
		data, err := os.ReadFile(fixtureFile)
		if err != nil {
			return errors.Wrap(err, "read fixture")
		}
		body = data
	}

	env, err := product.DecodeEnvelope(body)
	if err != nil {
		return errors.Wrap(err, "fixture is not a catalog envelope")
	}
	if env.Data != nil {
		slog.Info("serving product",
			slog.String("sku", env.Data.SKU),
			slog.String("name", env.Data.Name),
			slog.Int("status", env.Status),
		)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
		slog.Info("request", slog.String("query", r.URL.RawQuery))
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("catalog stub listening", slog.String("addr", addr), slog.String("path", path))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}
