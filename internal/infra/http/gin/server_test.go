package ginserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	"tripdesk/internal/app/fanout"
	bookinghandlers "tripdesk/internal/app/handlers/booking"
	"tripdesk/internal/app/handlers/me"
	"tripdesk/internal/app/middleware"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/domain/account"
	"tripdesk/internal/domain/availability"
	domainauth "tripdesk/internal/domain/auth"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/infra/config"
	"tripdesk/internal/infra/fixtures"
	ginserver "tripdesk/internal/infra/http/gin"
	"tripdesk/internal/infra/obs"
	"tripdesk/internal/infra/storage/memory"
)

const (
	staffToken = "staff-token"
	guestToken = "guest-token"
)

type testApp struct {
	router  http.Handler
	hub     *fanout.Hub
	factory memory.Factory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	items, err := fixtures.Default()
	require.NoError(t, err)
	catalog, err := memory.NewCatalog(items...)
	require.NoError(t, err)
	factory := memory.NewFactory(catalog)

	sessions := memory.NewSessionStore()
	for token, role := range map[string]account.Role{staffToken: account.RoleStaff, guestToken: account.RoleGuest} {
		s, err := domainauth.NewSession(domainauth.CreateSessionParams{
			Token:     domainauth.Token(token),
			AccountID: account.ID(string(role) + "-1"),
			Roles:     []account.Role{role},
			TTL:       time.Hour,
			Now:       time.Now(),
		})
		require.NoError(t, err)
		require.NoError(t, sessions.Save(context.Background(), s))
	}

	cmdBus, queryBus := commands.NewInMemoryBus(), queries.NewInMemoryBus()
	bookinghandlers.Module{
		UoWFactory: factory,
		Clock:      policies.FixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Accounts:   memory.NewAccountDirectory(),
	}.Register(cmdBus, queryBus)
	me.Register(queryBus, factory, nil)

	validator := middleware.NewStructValidator()
	cmds := middleware.ChainCommands(cmdBus,
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		middleware.Validation(validator),
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Retry(5, 0, domainbooking.ErrDuplicateReference, availability.ErrStaleCalendar),
		middleware.Transaction(factory, nil),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(policies.RoleAuthorizer{}),
	)

	hub := fanout.NewHub()
	router := ginserver.NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: cmds, Queries: qs},
		Staff:          ginserver.StaffHandler{Commands: cmds, Queries: qs},
		Me:             ginserver.MeHandler{Queries: qs},
		Events:         ginserver.EventsHandler{Hub: hub, Heartbeat: time.Hour},
		AuthMiddleware: ginserver.AuthMiddleware{Sessions: sessions}.Handle,
	})
	return &testApp{router: router, hub: hub, factory: factory}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func vanRequest() map[string]any {
	return map[string]any{
		"item_kind":    "vehicle",
		"item_id":      "van-hiace-01",
		"guest_name":   "Ana Cruz",
		"guest_email":  "Ana@Example.com",
		"start":        "2025-01-10",
		"end":          "2025-01-13",
		"guests":       4,
		"terms_agreed": true,
	}
}

func TestProposeAndLookup(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[dto.BookingReceipt](t, rec)
	require.True(t, strings.HasPrefix(receipt.Reference, "VEH-250101-"))
	require.Equal(t, "pending", receipt.Status)
	require.Equal(t, int64(10500), receipt.Total.Amount)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings/lookup?reference="+strings.ToLower(receipt.Reference)+"&email=ana@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[dto.GuestBookingView](t, rec)
	require.Equal(t, receipt.Reference, view.Reference)
	require.Equal(t, "Ana Cruz", view.GuestName)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings/lookup?reference="+receipt.Reference+"&email=someone@example.com", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decode[errorBody](t, rec).Code)
}

func TestProposeErrorMapping(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name   string
		mutate func(map[string]any)
		status int
		code   string
	}{
		{"terms", func(r map[string]any) { r["terms_agreed"] = false }, http.StatusBadRequest, "invalid_request"},
		{"unknown item", func(r map[string]any) { r["item_id"] = "bus-404" }, http.StatusNotFound, "not_found"},
		{"archived", func(r map[string]any) { r["item_id"] = "sedan-vios-01" }, http.StatusConflict, "unavailable"},
		{"bad email", func(r map[string]any) { r["guest_email"] = "nope" }, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := vanRequest()
			tc.mutate(body)
			rec := app.do(t, http.MethodPost, "/api/v1/bookings", "", body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decode[errorBody](t, rec).Code)
		})
	}

	rec := app.do(t, http.MethodPost, "/api/v1/bookings", "", map[string]any{"start": "next tuesday"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProposeSecondOverlapConflicts(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest()).Code)
	rec := app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest())
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "unavailable", decode[errorBody](t, rec).Code)
}

func TestIdempotencyKeyReplaysProposal(t *testing.T) {
	app := newTestApp(t)

	first := app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest(), "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest(), "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	require.Equal(t, decode[dto.BookingReceipt](t, first).Reference, decode[dto.BookingReceipt](t, second).Reference)

	all, err := app.factory.Bookings.List(context.Background(), domainbooking.Filter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestStaffEndpointsRequireStaff(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/staff/bookings", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthenticated", decode[errorBody](t, rec).Code)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings", guestToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings", "not-a-session", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/events", guestToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaffLifecycle(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodPost, "/api/v1/bookings", "", vanRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	receipt := decode[dto.BookingReceipt](t, rec)
	base := "/api/v1/staff/bookings/" + receipt.BookingID

	rec = app.do(t, http.MethodPost, base+"/transition", staffToken, map[string]string{"status": "confirmed", "note": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[dto.BookingView](t, rec)
	require.Equal(t, "confirmed", view.Status)
	require.Equal(t, "staff:staff-1", view.ProcessedBy)
	require.Equal(t, "paid", view.AdminNotes)

	rec = app.do(t, http.MethodPost, base+"/transition", staffToken, map[string]string{"status": "pending"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "illegal_transition", decode[errorBody](t, rec).Code)

	rec = app.do(t, http.MethodPost, base+"/transition", staffToken, map[string]string{"status": "teleported"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings?status=confirmed&kind=vehicle", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[dto.BookingCollection](t, rec).Items, 1)

	rec = app.do(t, http.MethodPost, base+"/archive", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[dto.ArchiveAck](t, rec).Archived)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings", staffToken, nil)
	require.Empty(t, decode[dto.BookingCollection](t, rec).Items)
	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings?include_archived=true", staffToken, nil)
	require.Len(t, decode[dto.BookingCollection](t, rec).Items, 1)

	rec = app.do(t, http.MethodGet, base, staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[dto.BookingView](t, rec).Archived)

	rec = app.do(t, http.MethodGet, "/api/v1/staff/bookings/missing", staffToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRejectsBadParameters(t *testing.T) {
	app := newTestApp(t)

	for _, q := range []string{"limit=-1", "limit=ten", "include_archived=maybe", "status=lost"} {
		rec := app.do(t, http.MethodGet, "/api/v1/staff/bookings?"+q, staffToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMyBookingsFollowTheSession(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/bookings", guestToken, vanRequest()).Code)
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/bookings", "", map[string]any{
		"item_kind": "tour_package", "item_id": "island-hopping-a", "guest_name": "Ben", "guest_email": "ben@example.com",
		"start": "2025-02-01", "guests": 1, "terms_agreed": true,
	}).Code)

	rec := app.do(t, http.MethodGet, "/api/v1/me/bookings", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mine := decode[dto.GuestBookingCollection](t, rec)
	require.Len(t, mine.Items, 1)
	require.Equal(t, "van-hiace-01", mine.Items[0].Item.ID)

	require.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/v1/me/bookings", "", nil).Code)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/livez", "", nil).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

// syncRecorder lets the test read a streaming body while the handler writes.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   bytes.Buffer
	code   int
}

func (r *syncRecorder) Header() http.Header { return r.header }

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = code
	}
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func TestEventStreamDeliversHubEvents(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := &syncRecorder{header: make(http.Header)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.router.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return app.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	app.hub.Publish(fanout.Event{Name: "booking.created", Reference: "VEH-250101-ABCDEFGHJK", Status: "pending"})
	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "event:booking.created")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after the client went away")
	}
	require.Contains(t, rec.String(), "VEH-250101-ABCDEFGHJK")
	contentType := rec.Header().Get("Content-Type")
	require.True(t, strings.HasPrefix(contentType, "text/event-stream"), contentType)
	require.Equal(t, 0, app.hub.Subscribers())
}
