package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tableserve/internal/domain"
	"tableserve/internal/notifier"
	"tableserve/internal/order"
)

type fakeOrders struct {
	createErr     error
	transitionErr error
	getErr        error

	lastRequested domain.OrderStatus
	lastActor     domain.Actor
}

func (f *fakeOrders) sample() *domain.Order {
	return &domain.Order{
		ID:           "ord-1",
		Number:       "ORD_20260831_001",
		RestaurantID: "rest-1",
		Status:       domain.StatusPending,
		TotalAmount:  34.48,
		Type:         domain.TypeDineIn,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func (f *fakeOrders) Create(_ context.Context, _ order.CreateInput) (*domain.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.sample(), nil
}

func (f *fakeOrders) Transition(_ context.Context, _ string, requested domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	f.lastRequested = requested
	f.lastActor = actor
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	o := f.sample()
	o.Status = requested
	return o, nil
}

func (f *fakeOrders) Get(_ context.Context, _ string) (*domain.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sample(), nil
}

func (f *fakeOrders) History(_ context.Context, _ string) ([]domain.StatusLogEntry, error) {
	return []domain.StatusLogEntry{{Status: domain.StatusPending, ChangedBy: "customer"}}, nil
}

func (f *fakeOrders) ListByRestaurant(_ context.Context, _ string) ([]domain.Order, error) {
	return []domain.Order{*f.sample()}, nil
}

func (f *fakeOrders) ListByTable(_ context.Context, _ string, _ int) ([]domain.Order, error) {
	return []domain.Order{*f.sample()}, nil
}

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

func newTestServer(f *fakeOrders) *Server {
	auth := NewStaticTokens(map[string]string{"staff-token": "rest-1"})
	return NewServer("127.0.0.1:0", f, notifier.NewHub(), auth, okPinger{})
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_Created(t *testing.T) {
	s := newTestServer(&fakeOrders{})

	body := `{"restaurant_id":"rest-1","items":[{"menu_item_id":"m1","quantity":1}],"order_type":"takeaway","payment_method":"cash","total_amount":34.48}`
	rec := do(t, s, http.MethodPost, "/api/orders", "", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var o domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if o.ID != "ord-1" || o.Status != domain.StatusPending {
		t.Errorf("unexpected order %+v", o)
	}
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	s := newTestServer(&fakeOrders{})
	rec := do(t, s, http.MethodPost, "/api/orders", "", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	s := newTestServer(&fakeOrders{createErr: order.ErrValidation})
	rec := do(t, s, http.MethodPost, "/api/orders", "", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	s := newTestServer(&fakeOrders{getErr: order.ErrNotFound})
	rec := do(t, s, http.MethodGet, "/api/orders/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetOrder_IncludesHistory(t *testing.T) {
	s := newTestServer(&fakeOrders{})
	rec := do(t, s, http.MethodGet, "/api/orders/ord-1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		ID      string                  `json:"id"`
		History []domain.StatusLogEntry `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.History) != 1 {
		t.Errorf("expected history in response, got %+v", resp)
	}
}

func TestTransition_RequiresAuth(t *testing.T) {
	s := newTestServer(&fakeOrders{})
	rec := do(t, s, http.MethodPatch, "/api/orders/ord-1/status", "", `{"status":"preparing"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPatch, "/api/orders/ord-1/status", "wrong-token", `{"status":"preparing"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestTransition_OK(t *testing.T) {
	f := &fakeOrders{}
	s := newTestServer(f)

	rec := do(t, s, http.MethodPatch, "/api/orders/ord-1/status", "staff-token", `{"status":"preparing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.lastRequested != domain.StatusPreparing {
		t.Errorf("expected requested status preparing, got %s", f.lastRequested)
	}
	if f.lastActor.RestaurantID != "rest-1" {
		t.Errorf("expected actor restaurant rest-1, got %s", f.lastActor.RestaurantID)
	}
}

func TestTransition_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{order.ErrNotFound, http.StatusNotFound},
		{order.ErrInvalidTransition, http.StatusConflict},
		{order.ErrForbidden, http.StatusForbidden},
		{order.ErrValidation, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		s := newTestServer(&fakeOrders{transitionErr: tc.err})
		rec := do(t, s, http.MethodPatch, "/api/orders/ord-1/status", "staff-token", `{"status":"preparing"}`)
		if rec.Code != tc.code {
			t.Errorf("error %v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}

func TestListByRestaurant_ScopedToActor(t *testing.T) {
	s := newTestServer(&fakeOrders{})

	rec := do(t, s, http.MethodGet, "/api/restaurants/rest-1/orders", "staff-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/restaurants/rest-2/orders", "staff-token", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign restaurant, got %d", rec.Code)
	}
}

func TestListByTable_Public(t *testing.T) {
	s := newTestServer(&fakeOrders{})

	rec := do(t, s, http.MethodGet, "/api/restaurants/rest-1/tables/4/orders", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/restaurants/rest-1/tables/zero/orders", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric table, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeOrders{})
	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	down := NewServer("127.0.0.1:0", &fakeOrders{}, notifier.NewHub(),
		NewStaticTokens(nil), okPinger{err: errors.New("down")})
	rec = do(t, down, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
