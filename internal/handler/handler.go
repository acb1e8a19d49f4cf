// Package handler exposes the product store to the presentation layer over
// HTTP.
package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/once-storefront/internal/store"
)

// ProductStore is the part of store.Store the handler depends on.
type ProductStore interface {
	State() store.State
	Load(ctx context.Context)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ShareURL is the storefront link put into share text.
	ShareURL string
}

// Handler serves the current product snapshot and lets the presentation
// layer trigger a reload.
type Handler struct {
	store    ProductStore
	shareURL string

	// loads tracks background loads started by Refresh.
	loads sync.WaitGroup
}

// NewHandler constructs a Handler backed by the given store.
func NewHandler(cfg HandlerConfig, s ProductStore) *Handler {
	return &Handler{
		store:    s,
		shareURL: cfg.ShareURL,
	}
}

// Register adds the product routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.GetProduct)
	mux.HandleFunc("POST /api/product/refresh", h.Refresh)
	mux.HandleFunc("GET /api/product/share", h.Share)
}

// Wait blocks until background loads started by Refresh have finished.
func (h *Handler) Wait() {
	h.loads.Wait()
}

// GetProduct writes the loaded product, or 404 while the store is empty.
func (h *Handler) GetProduct(w http.ResponseWriter, _ *http.Request) {
	p, ok := h.store.State().Product()
	if !ok {
		writeError(w, http.StatusNotFound, "product not loaded")
		return
	}

	var e jx.Encoder
	p.Encode(&e)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// Refresh starts a background load and returns immediately with 202. The
// load outlives the request; its outcome is observable through GetProduct.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	h.loads.Add(1)
	go func() {
		defer h.loads.Done()
		h.store.Load(ctx)
	}()

	zctx.From(r.Context()).Debug("Product refresh started")

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("loading")
	e.ObjEnd()
	writeJSON(w, http.StatusAccepted, e.Bytes())
}

// Share writes the share text for the storefront link.
func (h *Handler) Share(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("text")
	e.Str(ShareText(h.shareURL))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// ShareText returns the message shared along with link.
func ShareText(link string) string {
	return "Check out this amazing product: " + link
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Best effort: the status is already written.
	_, _ = w.Write(body)
}
