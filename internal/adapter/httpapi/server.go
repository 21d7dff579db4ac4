package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/storefront-sync/internal/adapter/notify"
	"github.com/example/storefront-sync/internal/domain"
	"github.com/example/storefront-sync/internal/usecase"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SyncStatus is the read side of the sync engine.
type SyncStatus interface {
	State() usecase.EngineState
	Scope() []string
}

type Server struct {
	Router *mux.Router
	Cart   *usecase.CartStore
	Orders *usecase.OrderStore
	Sync   SyncStatus
	Notes  *notify.Recorder
	Logger *zap.Logger
}

func NewServer(cart *usecase.CartStore, orders *usecase.OrderStore, sync SyncStatus, notes *notify.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{Router: mux.NewRouter(), Cart: cart, Orders: orders, Sync: sync, Notes: notes, Logger: logger}

	api := s.Router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.handleClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/totals", s.handleCartTotals).Methods(http.MethodGet)
	api.HandleFunc("/cart/select", s.handleSelectAll).Methods(http.MethodPost)
	api.HandleFunc("/cart/items", s.handleAddItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", s.handleUpdateQuantity).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items/{id}/toggle", s.handleToggleItem).Methods(http.MethodPost)

	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.handleClearOrders).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.handleRemoveOrder).Methods(http.MethodDelete)

	api.HandleFunc("/sync", s.handleSyncStatus).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	return s
}

type cartView struct {
	Items         []domain.CartItem `json:"items"`
	Count         int               `json:"count"`
	TotalPrice    int64             `json:"total_price"`
	TotalWeight   int               `json:"total_weight"`
	SelectedPrice int64             `json:"selected_price"`
}

func (s *Server) cartView() cartView {
	items := s.Cart.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return cartView{
		Items:         items,
		Count:         s.Cart.Count(),
		TotalPrice:    s.Cart.TotalPrice(false),
		TotalWeight:   s.Cart.TotalWeight(false),
		SelectedPrice: s.Cart.TotalPrice(true),
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleCartTotals(w http.ResponseWriter, r *http.Request) {
	only, _ := strconv.ParseBool(r.URL.Query().Get("only_selected"))
	writeJSON(w, http.StatusOK, map[string]any{
		"only_selected": only,
		"total_price":   s.Cart.TotalPrice(only),
		"total_weight":  s.Cart.TotalWeight(only),
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.ID == "" {
		http.Error(w, "invalid product", http.StatusBadRequest)
		return
	}
	s.respondCart(w, s.Cart.AddItem(r.Context(), p))
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		http.Error(w, "quantity required", http.StatusBadRequest)
		return
	}
	s.respondCart(w, s.Cart.UpdateQuantity(r.Context(), mux.Vars(r)["id"], *body.Quantity))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.respondCart(w, s.Cart.RemoveItem(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	s.respondCart(w, s.Cart.ToggleSelectItem(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.respondCart(w, s.Cart.ToggleSelectAll(r.Context(), body.Selected))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.respondCart(w, s.Cart.ClearCart(r.Context()))
}

func (s *Server) respondCart(w http.ResponseWriter, err error) {
	if err != nil {
		s.Logger.Error("cart change not persisted", zap.Error(err))
		http.Error(w, "cart not saved", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.Orders.Orders()
	if orders == nil {
		orders = []domain.TrackedOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.Orders.Order(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.TrackedOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "invalid order", http.StatusBadRequest)
		return
	}
	clearCart, _ := strconv.ParseBool(r.URL.Query().Get("clear_cart"))
	err := usecase.PlaceOrder{Orders: s.Orders, Cart: s.Cart}.Execute(r.Context(), order, clearCart)
	switch {
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, "order id required", http.StatusBadRequest)
	case err != nil:
		s.Logger.Error("order not persisted", zap.String("order_id", order.ID), zap.Error(err))
		http.Error(w, "order not saved", http.StatusInternalServerError)
	default:
		o, _ := s.Orders.Order(order.ID)
		writeJSON(w, http.StatusCreated, o)
	}
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.Orders.RemoveOrder(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, "orders not saved", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearOrders(w http.ResponseWriter, r *http.Request) {
	if err := s.Orders.ClearOrders(r.Context()); err != nil {
		http.Error(w, "orders not saved", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	scope := s.Sync.Scope()
	if scope == nil {
		scope = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.Sync.State(), "scope": scope})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	notes := s.Notes.Since(after)
	if notes == nil {
		notes = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
