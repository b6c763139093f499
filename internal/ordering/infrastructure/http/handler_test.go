package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playdata/microshop/internal/ordering/application"
	"github.com/playdata/microshop/internal/ordering/domain"
	"github.com/playdata/microshop/pkg/envelope"
	"github.com/playdata/microshop/pkg/idempotency"
)

type memOrders struct {
	saved []domain.Order
}

func (m *memOrders) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error {
	m.saved = append(m.saved, o)
	return nil
}

func (m *memOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	for _, o := range m.saved {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

type memPending struct {
	entries []domain.PendingOrder
}

func (m *memPending) Save(ctx context.Context, p domain.PendingOrder) error {
	m.entries = append(m.entries, p)
	return nil
}

func (m *memPending) FindAll(ctx context.Context) ([]domain.PendingOrder, error) {
	return m.entries, nil
}

func (m *memPending) MarkAttempt(ctx context.Context, id string, attempts int, at time.Time) error {
	return nil
}

func (m *memPending) Delete(ctx context.Context, id string) error { return nil }

type fakeUsers struct{ down bool }

func (f *fakeUsers) FetchUserByEmail(ctx context.Context, email string) (domain.RemoteUser, error) {
	if f.down {
		return domain.RemoteUser{}, domain.ErrDirectoryUnavailable
	}
	if email != "a@x.com" {
		return domain.RemoteUser{}, domain.ErrBuyerNotFound
	}
	return domain.RemoteUser{ID: 7, Email: email}, nil
}

type fakeProducts struct{ stock map[int64]int }

func (f *fakeProducts) FetchProduct(ctx context.Context, id int64) (domain.RemoteProduct, error) {
	q, ok := f.stock[id]
	if !ok {
		return domain.RemoteProduct{}, domain.ErrProductNotFound
	}
	return domain.RemoteProduct{ID: id, StockQuantity: q}, nil
}

func (f *fakeProducts) AdjustStock(ctx context.Context, id int64, newQuantity int) error {
	f.stock[id] = newQuantity
	return nil
}

type memIdem struct{ seen map[string]bool }

func (m *memIdem) Seen(ctx context.Context, key string) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	dup := m.seen[key]
	m.seen[key] = true
	return dup, nil
}

func (m *memIdem) Release(ctx context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

func newTestHandler(users *fakeUsers, products *fakeProducts) (*Handler, *memIdem) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, &memOrders{}, &memPending{}, users, products)
	idem := &memIdem{}
	return NewHandler(log, svc, idem, nil), idem
}

func postOrder(t *testing.T, h *Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/order/create", bytes.NewBufferString(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderPlaced(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 5}})

	rec := postOrder(t, h, `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":2}]}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "order placed", env.StatusMessage)

	var resp orderResp
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, domain.StatusPlaced, resp.Status)
	require.Len(t, resp.Lines, 1)
}

func TestCreateOrderDeferredOnOutage(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{down: true}, &fakeProducts{stock: map[int64]int{1: 5}})

	rec := postOrder(t, h, `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":2}]}`, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var resp deferredResp
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	assert.Equal(t, domain.StatusPending, resp.Status)
}

func TestCreateOrderRejectedInsufficientStock(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 1}})

	rec := postOrder(t, h, `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":2}]}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderUnknownBuyer(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 5}})

	rec := postOrder(t, h, `{"buyerEmail":"nobody@x.com","lines":[{"productId":1,"quantity":1}]}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrderDuplicateIdempotencyKey(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 5}})
	body := `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":1}]}`
	hdr := map[string]string{idempotency.Header: "key-1"}

	first := postOrder(t, h, body, hdr)
	second := postOrder(t, h, body, hdr)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestRejectedRequestReleasesIdempotencyKey(t *testing.T) {
	h, idem := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 0}})
	hdr := map[string]string{idempotency.Header: "key-2"}

	rec := postOrder(t, h, `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":1}]}`, hdr)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, idem.seen["key-2"], "key must be free for a corrected retry")
}

func TestGetOrder(t *testing.T) {
	h, _ := newTestHandler(&fakeUsers{}, &fakeProducts{stock: map[int64]int{1: 5}})

	rec := postOrder(t, h, `{"buyerEmail":"a@x.com","lines":[{"productId":1,"quantity":1}]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var created orderResp
	require.NoError(t, json.Unmarshal(env.Result, &created))

	req := httptest.NewRequest(http.MethodGet, "/order/"+created.ID, nil)
	get := httptest.NewRecorder()
	h.Routes().ServeHTTP(get, req)
	assert.Equal(t, http.StatusOK, get.Code)

	req = httptest.NewRequest(http.MethodGet, "/order/missing", nil)
	get = httptest.NewRecorder()
	h.Routes().ServeHTTP(get, req)
	assert.Equal(t, http.StatusNotFound, get.Code)
}
