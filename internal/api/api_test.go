package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"reasy/internal/account"
	"reasy/internal/audit"
	"reasy/internal/booking"
	"reasy/internal/db"
	"reasy/internal/events"
	"reasy/internal/export"
	"reasy/internal/model"
)

const testDay = "2026-01-15"

type testEnv struct {
	handler  http.Handler
	store    *db.DB
	accounts *account.Service
	business *model.Business
}

func newTestEnv(t *testing.T, rate float64, burst int) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "reasy.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	accounts := account.NewService(store, bcrypt.MinCost, &logger)
	tokens, err := account.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	bus := events.NewEventBus()
	trail := audit.NewService(store, audit.Config{}, &logger)
	trail.Attach(bus)
	bookings := booking.NewService(store, booking.NewLocalLocker(), bus, booking.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, time.January, 15, 8, 0, 0, 0, time.UTC) },
	}, &logger)

	owner, err := accounts.SignUp(ctx, "labellaitalia", "123", "123", model.RoleBusiness)
	require.NoError(t, err)
	biz := &model.Business{
		UserID:              owner.ID,
		Name:                "La Bella Italia",
		Category:            "Restaurants",
		Rating:              "4.7",
		WorkingHours:        "09:00-17:00",
		ReservationDuration: 30,
	}
	require.NoError(t, store.CreateBusiness(ctx, biz))

	srv := NewServer(Deps{
		Catalog:         store,
		Bookings:        bookings,
		Accounts:        accounts,
		Tokens:          tokens,
		Audit:           trail,
		LoginRatePerSec: rate,
		LoginBurst:      burst,
	}, &logger)

	return &testEnv{handler: srv.Router(), store: store, accounts: accounts, business: biz}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string, role model.Role) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": username, "password": password, "role": role,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) signUp(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"username": username, "password": "pw", "confirm_password": "pw", "role": "client",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, username, resp.User.Username)
	return resp.Token
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t, 1000, 1000)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid JSON",
			path:       "/api/auth/signup",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "password mismatch",
			path:       "/api/auth/signup",
			body:       map[string]any{"username": "alice", "password": "a", "confirm_password": "b", "role": "client"},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Passwords do not match",
		},
		{
			name:       "username taken",
			path:       "/api/auth/signup",
			body:       map[string]any{"username": "labellaitalia", "password": "a", "confirm_password": "a", "role": "client"},
			wantStatus: http.StatusConflict,
			wantError:  "Username already exists",
		},
		{
			name:       "wrong password",
			path:       "/api/auth/login",
			body:       map[string]any{"username": "labellaitalia", "password": "nope", "role": "business"},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid username or password",
		},
		{
			name:       "wrong login mode",
			path:       "/api/auth/login",
			body:       map[string]any{"username": "labellaitalia", "password": "123", "role": "client"},
			wantStatus: http.StatusForbidden,
			wantError:  "Invalid user type for selected login mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, errorMessage(t, w))
			assert.NotEmpty(t, w.Header().Get(requestIDHeader))
		})
	}

	env.signUp(t, "alice")
	env.login(t, "alice", "pw", model.RoleClient)
	env.login(t, "labellaitalia", "123", model.RoleBusiness)
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, 0.001, 2)
	body := map[string]any{"username": "labellaitalia", "password": "nope", "role": "business"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/auth/login", "", body).Code)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// browsing is not throttled
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/categories", "", nil).Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, 1000, 1000)

	w := env.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":["Restaurants"]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/businesses?category=Hotels", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"businesses":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/businesses?q=bella", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Businesses []model.Business `json:"businesses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Businesses, 1)
	assert.Equal(t, 30, list.Businesses[0].ReservationDuration)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/businesses/1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/businesses/99", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/businesses/abc", "", nil).Code)
}

func TestAccessControl(t *testing.T) {
	env := newTestEnv(t, 1000, 1000)
	client := env.signUp(t, "alice")
	owner := env.login(t, "labellaitalia", "123", model.RoleBusiness)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me/reservations", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me/reservations", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/business/reservations", client, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/reservations", owner, map[string]int{"slot_id": 1}).Code)

	w := env.do(t, http.MethodGet, "/api/me/reservations?tab=everything", client, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/reservations", client, map[string]int{"slot_id": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, booking.ErrNoSlotSelected.Error(), errorMessage(t, w))

	w = env.do(t, http.MethodGet, "/api/businesses/1/slots?date=2026-01-01", client, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = env.do(t, http.MethodGet, "/api/businesses/1/slots?date=January", client, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t, 1000, 1000)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	owner := env.login(t, "labellaitalia", "123", model.RoleBusiness)

	w := env.do(t, http.MethodGet, "/api/businesses/1/slots?date="+testDay, alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var day booking.DaySlots
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &day))
	require.Len(t, day.Slots, 16)
	assert.Equal(t, 16, day.Available)
	assert.Equal(t, "Today", day.Label)

	w = env.do(t, http.MethodPost, "/api/reservations", alice, map[string]int64{"slot_id": day.Slots[0].ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.ReservationPending, res.Status)

	w = env.do(t, http.MethodPost, "/api/reservations", bob, map[string]int64{"slot_id": day.Slots[0].ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/reservations", bob, map[string]int64{"slot_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/business/reservations?tab=pending", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending struct {
		Tab    string                     `json:"tab"`
		Groups []booking.ReservationGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending.Groups, 1)
	assert.Equal(t, testDay, pending.Groups[0].Date)
	assert.Equal(t, "alice", pending.Groups[0].Items[0].ClientName)

	path := "/api/business/reservations/" + strconv.FormatInt(res.ID, 10)
	w = env.do(t, http.MethodPost, path+"/accept", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, path+"/decline", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, path+"/history", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history struct {
		Events []db.ReservationEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Events, 2)
	assert.Equal(t, events.ReservationCreated, history.Events[0].Type)
	assert.Equal(t, events.ReservationAccepted, history.Events[1].Type)

	w = env.do(t, http.MethodPost, "/api/business/reservations/4242/accept", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/me/reservations?tab=upcoming", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var upcoming struct {
		Groups []booking.ReservationGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upcoming))
	require.Len(t, upcoming.Groups, 1)
	assert.Equal(t, model.ReservationAccepted, upcoming.Groups[0].Items[0].Status)
	assert.Equal(t, "La Bella Italia", upcoming.Groups[0].Items[0].BusinessName)

	w = env.do(t, http.MethodGet, "/api/business/reservations?tab=pending", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tab":"pending","groups":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/business/stats", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"date":"2026-01-15","stats":{"accepted":1,"pending":0,"declined":0}}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/business/reservations/export", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reservations_1_")
	assert.NotZero(t, w.Body.Len())

	w = env.do(t, http.MethodGet, "/api/business", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "La Bella Italia")
}

func TestBusinessWithoutListing(t *testing.T) {
	env := newTestEnv(t, 1000, 1000)
	_, err := env.accounts.SignUp(context.Background(), "newshop", "pw", "pw", model.RoleBusiness)
	require.NoError(t, err)
	token := env.login(t, "newshop", "pw", model.RoleBusiness)

	w := env.do(t, http.MethodGet, "/api/business/stats", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
