package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"itembook/internal/auth"
	"itembook/internal/cart"
	"itembook/internal/config"
	"itembook/internal/database"
	"itembook/internal/events"
	"itembook/internal/export"
	"itembook/internal/models"
	"itembook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []models.ApprovalNotice
}

func (n *recordingNotifier) Dispatch(_ context.Context, notice models.ApprovalNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	db       *database.DB
	tokens   *auth.TokenManager
	notifier *recordingNotifier
}

func newTestAPI(t *testing.T, serverCfg config.ServerConfig) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewDB(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := auth.NewTokenManager("0123456789abcdef-test", time.Hour)
	notifier := &recordingNotifier{}
	bookings := service.NewBookingService(db, db, db, events.NewEventBus(&logger), notifier, &logger)

	srv := NewHTTPServer(serverCfg, config.AuthConfig{}, Services{
		Bookings: bookings,
		Carts:    service.NewCartService(cart.NewMemoryStore(), db, bookings, &logger),
		Items:    service.NewItemService(db),
		Users:    service.NewUserService(db, tokens, &logger),
		Exporter: export.NewExporter(db, t.TempDir(), &logger),
		Tokens:   tokens,
	}, &logger)

	return &testAPI{t: t, handler: srv.Handler(), db: db, tokens: tokens, notifier: notifier}
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{Address: ":0", RateLimitPerSecond: 1000, RateLimitBurst: 1000}
}

func (a *testAPI) seedUser(id, email string, role models.Role) string {
	a.t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(a.t, err)
	u := &models.User{
		ID: id, Name: id, Email: email, PasswordHash: hash, Role: role,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(a.t, a.db.CreateUser(context.Background(), u))
	token, err := a.tokens.Issue(u)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) seedItem(id string) {
	a.t.Helper()
	now := time.Now().UTC()
	require.NoError(a.t, a.db.CreateItem(context.Background(), &models.Item{
		ID: id, Description: "Item " + id, ContentSummary: "boxes", StorageDetails: "shelf",
		IsAvailable: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, w).Error
}

func entry(itemID string, qty int, start, end string) map[string]any {
	return map[string]any{"item_id": itemID, "quantity": qty, "start_date": start, "end_date": end}
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())

	w := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "Ann@Example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[models.User](t, w)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email already registered", errorOf(t, w))

	w = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[loginResponse](t, w)
	require.NotEmpty(t, login.Token)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", http.NoBody)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "cookie authenticates")

	w = a.do(http.MethodGet, "/api/auth/user-role/ANN@example.com", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"email": "ann@example.com", "role": "user"}, decode[map[string]string](t, w))

	w = a.do(http.MethodPost, "/api/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestRegister_ElevatedRoleNeedsSuperAdmin(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	super := a.seedUser("root", "root@example.com", models.RoleSuperAdmin)
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)

	body := map[string]string{"name": "Bob", "email": "bob@example.com", "password": "password123", "role": "admin"}

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"anonymous", "", http.StatusForbidden},
		{"admin", admin, http.StatusForbidden},
		{"super-admin", super, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/auth/register", tt.token, body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	user := a.seedUser("u1", "u1@example.com", models.RoleUser)

	expired, err := auth.NewTokenManager("0123456789abcdef-test", -time.Hour).Issue(&models.User{ID: "u1", Role: models.RoleUser})
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantError  string
	}{
		{"no token", http.MethodGet, "/api/cart", "", http.StatusUnauthorized, "authentication required"},
		{"garbage token", http.MethodGet, "/api/cart", "not-a-jwt", http.StatusUnauthorized, "invalid token"},
		{"expired token", http.MethodGet, "/api/cart", expired, http.StatusUnauthorized, "token has expired"},
		{"user on admin route", http.MethodGet, "/api/users", user, http.StatusForbidden, "admin role required"},
		{"public route ignores bad token", http.MethodGet, "/api/items", "not-a-jwt", http.StatusOK, ""},
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound, "route not found"},
		{"wrong method", http.MethodPut, "/api/cart", user, http.StatusMethodNotAllowed, "method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorOf(t, w))
			}
		})
	}
}

func TestBookingLifecycle(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	owner := a.seedUser("u1", "owner@example.com", models.RoleUser)
	other := a.seedUser("u2", "other@example.com", models.RoleUser)
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)
	a.seedItem("tent")
	a.seedItem("stove")

	w := a.do(http.MethodPost, "/api/cart/items", owner, entry("tent", 1, "2024-06-10", "2024-06-15"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/cart/items", owner, entry("tent", 2, "2024-06-10", "2024-06-15"))
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodPost, "/api/cart/items", owner, entry("stove", 1, "2024-06-11", "2024-06-12"))
	require.Equal(t, http.StatusOK, w.Code)

	c := decode[models.Cart](t, w)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity, "identical selection merges")

	w = a.do(http.MethodPost, "/api/cart/submit", owner, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[models.BookingRequest](t, w)
	assert.Equal(t, models.StatusPending, req.Status)
	require.Len(t, req.Entries, 2)
	assert.Equal(t, "tent", req.Entries[0].ItemID)

	w = a.do(http.MethodGet, "/api/cart", owner, nil)
	assert.Empty(t, decode[models.Cart](t, w).Items, "submit clears the cart")

	w = a.do(http.MethodDelete, "/api/booking-requests/"+req.ID+"/cancel", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "non-owner cannot cancel")

	w = a.do(http.MethodPatch, "/api/booking-requests/"+req.ID+"/status", owner, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code, "users cannot decide")

	w = a.do(http.MethodPatch, "/api/booking-requests/"+req.ID+"/status", admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, decode[models.BookingRequest](t, w).Status)
	assert.Equal(t, 1, a.notifier.count())

	w = a.do(http.MethodPatch, "/api/booking-requests/"+req.ID+"/status", admin, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusConflict, w.Code, "second approval")

	w = a.do(http.MethodDelete, "/api/booking-requests/"+req.ID+"/cancel", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "approved requests cannot be cancelled")

	w = a.do(http.MethodPatch, "/api/booking-requests/"+req.ID, owner, map[string]any{
		"items": []any{entry("tent", 1, "2024-07-01", "2024-07-02")},
	})
	assert.Equal(t, http.StatusConflict, w.Code, "approved requests cannot be edited")

	blocked := []struct {
		date string
		want bool
	}{
		{"2024-06-10", true},
		{"2024-06-12", true},
		{"2024-06-15", true},
		{"2024-06-16", false},
	}
	for _, tt := range blocked {
		t.Run("blocked "+tt.date, func(t *testing.T) {
			w := a.do(http.MethodGet, "/api/items/tent/blocked?date="+tt.date, "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			resp := decode[blockedResponse](t, w)
			require.NotNil(t, resp.Blocked)
			assert.Equal(t, tt.want, *resp.Blocked)
			assert.Len(t, resp.Ranges, 1)
		})
	}

	w = a.do(http.MethodGet, "/api/booking-requests?status=approved", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.BookingRequest](t, w), 1)

	w = a.do(http.MethodGet, "/api/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.DashboardStats](t, w)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Counts[models.StatusApproved])
}

func TestUpdateStatus_GuardOrder(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	owner := a.seedUser("u1", "owner@example.com", models.RoleUser)
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)
	a.seedItem("tent")

	w := a.do(http.MethodPost, "/api/booking-requests", owner, map[string]any{
		"items": []any{entry("tent", 1, "2024-06-10", "2024-06-12")},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[models.BookingRequest](t, w).ID

	w = a.do(http.MethodPatch, "/api/booking-requests/"+id+"/status", admin, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tests := []struct {
		name       string
		path       string
		token      string
		status     string
		wantStatus int
	}{
		{"unknown request before role", "/api/booking-requests/missing/status", owner, "approved", http.StatusNotFound},
		{"role before state", "/api/booking-requests/" + id + "/status", owner, "approved", http.StatusForbidden},
		{"state before value", "/api/booking-requests/" + id + "/status", admin, "bogus", http.StatusConflict},
		{"anonymous", "/api/booking-requests/" + id + "/status", "", "approved", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPatch, tt.path, tt.token, map[string]string{"status": tt.status})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestOwnerEditsAndCancelsPendingRequest(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	owner := a.seedUser("u1", "owner@example.com", models.RoleUser)
	a.seedItem("tent")

	w := a.do(http.MethodPost, "/api/booking-requests", owner, map[string]any{
		"items": []any{entry("tent", 1, "2030-01-10", "2030-01-12")},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[models.BookingRequest](t, w)

	w = a.do(http.MethodPatch, "/api/booking-requests/"+req.ID, owner, map[string]any{
		"items": []any{entry("tent", 4, "2030-02-01", "2030-02-03")},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode[models.BookingRequest](t, w)
	require.Len(t, edited.Entries, 1)
	assert.Equal(t, 4, edited.Entries[0].Quantity)

	w = a.do(http.MethodGet, "/api/booking-requests/my-requests", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[myRequestsResponse](t, w)
	assert.Len(t, mine.Active, 1)
	assert.Empty(t, mine.Past)

	w = a.do(http.MethodDelete, "/api/booking-requests/"+req.ID+"/cancel", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodDelete, "/api/booking-requests/"+req.ID+"/cancel", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRequest_Validation(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	user := a.seedUser("u1", "u1@example.com", models.RoleUser)
	a.seedItem("tent")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty list",
			body:       map[string]any{"items": []any{}},
			wantStatus: http.StatusBadRequest,
			wantError:  "booking request must contain at least one item",
		},
		{
			name:       "inverted range",
			body:       map[string]any{"items": []any{entry("tent", 1, "2024-06-15", "2024-06-10")}},
			wantStatus: http.StatusBadRequest,
			wantError:  "item 1: start date must be before end date",
		},
		{
			name:       "same day",
			body:       map[string]any{"items": []any{entry("tent", 1, "2024-06-10", "2024-06-10")}},
			wantStatus: http.StatusBadRequest,
			wantError:  "item 1: start date must be before end date",
		},
		{
			name:       "zero quantity",
			body:       map[string]any{"items": []any{entry("tent", 0, "2024-06-10", "2024-06-11")}},
			wantStatus: http.StatusBadRequest,
			wantError:  "item 1: quantity must be at least 1",
		},
		{
			name:       "bad date format",
			body:       map[string]any{"items": []any{entry("tent", 1, "10-06-2024", "2024-06-11")}},
			wantStatus: http.StatusBadRequest,
			wantError:  "items[0].start_date must be a date in YYYY-MM-DD format",
		},
		{
			name:       "missing item id",
			body:       map[string]any{"items": []any{entry("", 1, "2024-06-10", "2024-06-11")}},
			wantStatus: http.StatusBadRequest,
			wantError:  "items[0].item_id is required",
		},
		{
			name:       "unknown item",
			body:       map[string]any{"items": []any{entry("nope", 1, "2024-06-10", "2024-06-11")}},
			wantStatus: http.StatusNotFound,
			wantError:  "item nope not found",
		},
		{
			name:       "invalid JSON",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "unknown field",
			body:       map[string]any{"items": []any{}, "user_id": "u2"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/booking-requests", user, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, errorOf(t, w))
		})
	}
}

func TestCart_Errors(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	user := a.seedUser("u1", "u1@example.com", models.RoleUser)
	a.seedItem("tent")

	w := a.do(http.MethodPost, "/api/cart/submit", user, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart is empty", errorOf(t, w))

	w = a.do(http.MethodPatch, "/api/cart/items/tent", user, map[string]int{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, "/api/cart/items", user, entry("tent", 1, "2024-06-10", "2024-06-12"))
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPatch, "/api/cart/items/tent", user, map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPatch, "/api/cart/items/tent", user, map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decode[models.Cart](t, w).Items[0].Quantity)

	w = a.do(http.MethodDelete, "/api/cart/items/tent", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.Cart](t, w).Items)

	w = a.do(http.MethodDelete, "/api/cart", user, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestItems(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	user := a.seedUser("u1", "u1@example.com", models.RoleUser)
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)

	body := map[string]any{
		"description": "Camping tent", "content_summary": "tent, pegs", "storage_details": "rack 3", "featured": true,
	}

	w := a.do(http.MethodPost, "/api/items", user, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/items", admin, map[string]any{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content_summary is required", errorOf(t, w))

	w = a.do(http.MethodPost, "/api/items", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.Item](t, w)
	assert.True(t, item.IsAvailable, "available by default")

	w = a.do(http.MethodGet, "/api/items/featured", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Item](t, w), 1)

	body["is_available"] = false
	w = a.do(http.MethodPut, "/api/items/"+item.ID, admin, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.Item](t, w).IsAvailable)

	w = a.do(http.MethodPost, "/api/booking-requests", user, map[string]any{
		"items": []any{entry(item.ID, 1, "2024-06-10", "2024-06-11")},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodDelete, "/api/items/"+item.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "referenced items are kept")

	w = a.do(http.MethodGet, "/api/items/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailability(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	a.seedItem("tent")

	w := a.do(http.MethodPost, "/api/availability", "", map[string]any{
		"start_date": "2024-01-01", "end_date": "2024-06-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "date range exceeds maximum of 90 days", errorOf(t, w))

	w = a.do(http.MethodPost, "/api/availability", "", map[string]any{
		"start_date": "2024-06-10", "end_date": "2024-06-12", "item_ids": []string{"tent"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[availabilityResponse](t, w)
	require.Len(t, resp.Items, 1)
	assert.Len(t, resp.Items[0].Availability, 3)
	assert.True(t, resp.Items[0].Availability[0].Available)
	assert.Equal(t, "2024-06-10", resp.Period.Start)
}

func TestUsersAdmin(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)
	a.seedUser("u1", "u1@example.com", models.RoleUser)

	w := a.do(http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 2)

	w = a.do(http.MethodPost, "/api/auth/update-role", admin, map[string]string{"email": "u1@example.com", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code, "only super-admins grant admin")

	w = a.do(http.MethodPost, "/api/auth/update-role", admin, map[string]string{"email": "u1@example.com", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodDelete, "/api/users/adm@example.com", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no self-delete")

	w = a.do(http.MethodDelete, "/api/users/u1@example.com", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodDelete, "/api/users/u1@example.com", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	a := newTestAPI(t, defaultServerConfig())
	user := a.seedUser("u1", "u1@example.com", models.RoleUser)
	admin := a.seedUser("adm", "adm@example.com", models.RoleAdmin)
	a.seedItem("tent")

	w := a.do(http.MethodPost, "/api/booking-requests", user, map[string]any{
		"items": []any{entry("tent", 2, "2024-06-10", "2024-06-11")},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodGet, "/api/admin/export.xlsx?from=2024-06-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/admin/export.xlsx?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Requests")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u1@example.com", rows[1][2])
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, config.ServerConfig{Address: ":0", RateLimitPerSecond: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/items", "", nil).Code)
	}
	w := a.do(http.MethodGet, "/api/items", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newClientLimiter(1, 1)
	c.now = func() time.Time { return now }
	c.lastSweep = now

	assert.True(t, c.allow("10.0.0.1"))
	assert.False(t, c.allow("10.0.0.1"), "burst spent")
	assert.True(t, c.allow("10.0.0.2"))
	require.Len(t, c.clients, 2)

	now = now.Add(2 * time.Minute)
	assert.True(t, c.allow("10.0.0.2"))
	assert.Len(t, c.clients, 2, "nobody idle long enough yet")

	now = now.Add(2 * time.Minute)
	assert.True(t, c.allow("10.0.0.3"))
	assert.Len(t, c.clients, 2, "10.0.0.1 idle for 4m is evicted")
	assert.NotContains(t, c.clients, "10.0.0.1")
	assert.Contains(t, c.clients, "10.0.0.2")
}
