package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/playdata/microshop/internal/ordering/application"
	"github.com/playdata/microshop/internal/ordering/domain"
	"github.com/playdata/microshop/pkg/envelope"
	"github.com/playdata/microshop/pkg/idempotency"
	"github.com/playdata/microshop/pkg/metrics"
)

// IdempotencyStore guards order submission against client retries.
type IdempotencyStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	idem    IdempotencyStore
	metrics *metrics.OrderingMetrics
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, idem IdempotencyStore, m *metrics.OrderingMetrics) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		metrics: m,
		tracer:  otel.Tracer("ordering-http"),
	}
}

type createOrderReq struct {
	BuyerEmail string               `json:"buyerEmail"`
	Lines      []domain.RequestLine `json:"lines"`
}

// deferredResp tells the caller the request is held as PENDING rather
// than placed.
type deferredResp struct {
	Status domain.OrderStatus `json:"status"`
}

type orderResp struct {
	ID        string             `json:"id"`
	BuyerID   int64              `json:"buyerId"`
	Status    domain.OrderStatus `json:"status"`
	Lines     []domain.OrderLine `json:"lines"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/order/create", h.createOrder)
	r.Get("/order/{id}", h.getOrder)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// createOrder answers with three distinguishable outcomes: 201 placed,
// 202 deferred for later processing, 4xx rejected.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("rejected")
		_ = envelope.Write(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.BuyerEmail == "" {
		h.count("rejected")
		_ = envelope.Write(w, http.StatusBadRequest, "buyerEmail required", nil)
		return
	}

	idemKey := idempotency.KeyFromRequest(r)
	if idemKey != "" {
		seen, err := h.idem.Seen(ctx, idemKey)
		if err != nil {
			h.log.Error("idempotency check failed", "err", err)
		} else if seen {
			h.count("duplicate")
			_ = envelope.Write(w, http.StatusConflict, "duplicate request", nil)
			return
		}
	}

	o, err := h.service.CreateOrder(ctx, req.BuyerEmail, req.Lines)
	if err != nil {
		h.writeFailure(ctx, w, err, idemKey)
		return
	}

	h.count("placed")
	_ = envelope.Write(w, http.StatusCreated, "order placed", orderResp{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		Status:    o.Status,
		Lines:     o.Lines,
		CreatedAt: o.CreatedAt,
	})
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, err error, idemKey string) {
	switch {
	case errors.Is(err, domain.ErrOrderDeferred):
		h.count("deferred")
		_ = envelope.Write(w, http.StatusAccepted, "order accepted for later processing", deferredResp{
			Status: domain.StatusPending,
		})
		return
	case errors.Is(err, domain.ErrBuyerNotFound), errors.Is(err, domain.ErrProductNotFound):
		h.count("rejected")
		h.release(ctx, idemKey)
		_ = envelope.Write(w, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidRequest):
		h.count("rejected")
		h.release(ctx, idemKey)
		_ = envelope.Write(w, http.StatusBadRequest, err.Error(), nil)
		return
	default:
		h.count("error")
		h.release(ctx, idemKey)
		h.log.Error("order creation failed", "err", err)
		_ = envelope.Write(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// release frees the idempotency key after a rejection so a corrected
// resubmission with the same key is not mistaken for a duplicate.
func (h *Handler) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idem.Release(ctx, key); err != nil {
		h.log.Error("idempotency release failed", "err", err)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.service.GetOrder(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		_ = envelope.Write(w, http.StatusNotFound, "order not found", nil)
		return
	}
	if err != nil {
		h.log.Error("order lookup failed", "order_id", id, "err", err)
		_ = envelope.Write(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "ok", orderResp{
		ID:        o.ID,
		BuyerID:   o.BuyerID,
		Status:    o.Status,
		Lines:     o.Lines,
		CreatedAt: o.CreatedAt,
	})
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Orders.WithLabelValues(outcome).Inc()
	}
}
