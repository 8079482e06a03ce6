package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tableserve/internal/domain"
	"tableserve/internal/order"
)

// OrderService is the slice of the lifecycle manager the HTTP layer uses.
type OrderService interface {
	Create(ctx context.Context, in order.CreateInput) (*domain.Order, error)
	Transition(ctx context.Context, orderID string, requested domain.OrderStatus, actor domain.Actor) (*domain.Order, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
	ListByTable(ctx context.Context, restaurantID string, tableNumber int) ([]domain.Order, error)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	o, err := s.orders.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Info().
		Str("order_id", o.ID).
		Str("order_number", o.Number).
		Float64("total_amount", o.TotalAmount).
		Msg("order created")
	writeJSON(w, http.StatusCreated, o)
}

type orderWithHistory struct {
	*domain.Order
	History []domain.StatusLogEntry `json:"history,omitempty"`
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	o, err := s.orders.Get(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	history, err := s.orders.History(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderWithHistory{Order: o, History: history})
}

type transitionRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	o, err := s.orders.Transition(r.Context(), orderID, req.Status, actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Info().
		Str("order_id", o.ID).
		Str("status", string(o.Status)).
		Msg("order status updated")
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleListByRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	if actorFrom(r.Context()).RestaurantID != restaurantID {
		writeError(w, http.StatusForbidden, "not authorized for this restaurant")
		return
	}

	orders, err := s.orders.ListByRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleListByTable(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil || table < 1 {
		writeError(w, http.StatusBadRequest, "invalid table number")
		return
	}

	orders, err := s.orders.ListByTable(r.Context(), restaurantID, table)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleWS upgrades the connection and hands it to the hub. The channel is
// server-to-client only; viewers re-fetch through the REST API on events.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.Serve(conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
