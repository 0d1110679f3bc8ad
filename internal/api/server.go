package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"itembook/internal/auth"
	"itembook/internal/config"
	"itembook/internal/export"
	"itembook/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Services bundles what the handlers call into.
type Services struct {
	Bookings *service.BookingService
	Carts    *service.CartService
	Items    *service.ItemService
	Users    *service.UserService
	Exporter *export.Exporter
	Tokens   *auth.TokenManager
}

// HTTPServer exposes the booking API over JSON.
type HTTPServer struct {
	cfg      config.ServerConfig
	authCfg  config.AuthConfig
	svc      Services
	validate *validator.Validate
	limiter  *clientLimiter
	router   *mux.Router
	server   *http.Server
	logger   zerolog.Logger
}

func NewHTTPServer(cfg config.ServerConfig, authCfg config.AuthConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg:      cfg,
		authCfg:  authCfg,
		svc:      svc,
		validate: newValidator(),
		limiter:  newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		router:   mux.NewRouter(),
		logger:   logger.With().Str("component", "http_api").Logger(),
	}
	s.routes()

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() {
	r := s.router
	r.Use(s.recoverer, s.observe, s.rateLimit, s.authenticate)
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler, r.MethodNotAllowedHandler = notFound, notAllowed

	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler, api.MethodNotAllowedHandler = notFound, notAllowed

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.requireAuth(s.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/user-role/{email}", s.requireAuth(s.handleUserRole)).Methods(http.MethodGet)
	api.HandleFunc("/auth/update-role", s.requireAdmin(s.handleUpdateRole)).Methods(http.MethodPost)

	api.HandleFunc("/users", s.requireAdmin(s.handleListUsers)).Methods(http.MethodGet)
	api.HandleFunc("/users/{email}", s.requireAdmin(s.handleDeleteUser)).Methods(http.MethodDelete)

	api.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/items/featured", s.handleFeaturedItems).Methods(http.MethodGet)
	api.HandleFunc("/items", s.requireAdmin(s.handleCreateItem)).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}", s.handleGetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", s.requireAdmin(s.handleUpdateItem)).Methods(http.MethodPut)
	api.HandleFunc("/items/{id}", s.requireAdmin(s.handleDeleteItem)).Methods(http.MethodDelete)
	api.HandleFunc("/items/{id}/blocked", s.handleItemBlocked).Methods(http.MethodGet)
	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodPost)

	api.HandleFunc("/cart", s.requireAuth(s.handleGetCart)).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.requireAuth(s.handleClearCart)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", s.requireAuth(s.handleAddToCart)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{itemId}", s.requireAuth(s.handleSetCartQuantity)).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{itemId}", s.requireAuth(s.handleRemoveFromCart)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/submit", s.requireAuth(s.handleSubmitCart)).Methods(http.MethodPost)

	api.HandleFunc("/booking-requests", s.requireAuth(s.handleCreateRequest)).Methods(http.MethodPost)
	api.HandleFunc("/booking-requests", s.requireAdmin(s.handleListRequests)).Methods(http.MethodGet)
	api.HandleFunc("/booking-requests/my-requests", s.requireAuth(s.handleMyRequests)).Methods(http.MethodGet)
	api.HandleFunc("/booking-requests/{id}/status", s.requireAuth(s.handleUpdateStatus)).Methods(http.MethodPatch)
	api.HandleFunc("/booking-requests/{id}/cancel", s.requireAuth(s.handleCancelRequest)).Methods(http.MethodDelete)
	api.HandleFunc("/booking-requests/{id}", s.requireAuth(s.handleEditRequest)).Methods(http.MethodPatch)

	api.HandleFunc("/admin/dashboard", s.requireAdmin(s.handleDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/admin/export.xlsx", s.requireAdmin(s.handleExport)).Methods(http.MethodGet)
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.cfg.Address).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
