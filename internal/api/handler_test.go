package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/dbtest"
	"medinv/m/internal/dispense"
	"medinv/m/internal/metrics"
	"medinv/m/internal/repository"
	"medinv/m/internal/seed"
)

type testAPI struct {
	t      *testing.T
	db     *sqlx.DB
	router http.Handler
	feed   *dispense.Feed
	acts   *repository.ActivityRepository
}

func newTestAPI(t *testing.T, authn func(*repository.UserRepository) auth.Authenticator) *testAPI {
	t.Helper()
	db := dbtest.Open(t)
	_, err := seed.SeedUsers(context.Background(), db, zap.NewNop())
	require.NoError(t, err)

	m := metrics.New()
	feed := dispense.New(dispense.Config{Interval: time.Hour, Rand: rand.New(rand.NewPCG(7, 7))}, zap.NewNop(), m)
	users := repository.NewUserRepository(db)
	h := New(Options{
		DB:            db,
		Logger:        zap.NewNop(),
		Metrics:       m,
		Authenticator: authn(&users),
		Tokens:        auth.NewTokens("test-secret", time.Hour),
		Feed:          feed,
	})
	acts := repository.NewActivityRepository(db)
	return &testAPI{t: t, db: db, router: h.Router(), feed: feed, acts: &acts}
}

func databaseAuth(users *repository.UserRepository) auth.Authenticator {
	return auth.NewDatabaseAuthenticator(*users)
}

func staticAuth(*repository.UserRepository) auth.Authenticator {
	return auth.NewStaticAuthenticator()
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	a := newTestAPI(t, databaseAuth)

	rec := a.do(http.MethodPost, "/auth/login", "", loginRequest{Username: "admin", Password: "Admin123!"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)
	assert.Equal(t, "A", resp.User.Avatar)

	// email works as the username
	a.login("farmacia@hospital.com", "Farmacia123!")

	for _, bad := range []loginRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "nobody", Password: "Admin123!"},
	} {
		rec := a.do(http.MethodPost, "/auth/login", "", bad)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
	}

	acts, err := a.acts.List(context.Background(), repository.ActivityFilter{Type: domain.ActivityLogin})
	require.NoError(t, err)
	assert.Len(t, acts, 2)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	rec := a.do(http.MethodGet, "/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodGet, "/inventory", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

func TestRoleGating(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	assistant := a.login("asistente", "Asistente123!")
	pharmacist := a.login("farmacia", "Farmacia123!")

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/inventory/any", assistant, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/users", pharmacist, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/migrate", pharmacist, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/activities/export", pharmacist, nil).Code)

	// pharmacists may delete; the id does not exist
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/inventory/missing", pharmacist, nil).Code)
}

func TestInventoryLifecycle(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("farmacia", "Farmacia123!")

	qty := int64(120)
	rec := a.do(http.MethodPost, "/inventory", token, map[string]any{
		"name": "Vancomicina 500 mg", "lot": "VAN-001", "quantity": qty,
		"expiry_date": "2099-12-31", "warehouse": domain.WarehouseAntimicrobials,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.InventoryItem](t, rec)
	assert.Equal(t, domain.StatusNormal, created.Status)

	rec = a.do(http.MethodGet, "/inventory/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPut, "/inventory/"+created.ID, token, map[string]any{
		"name": created.Name, "lot": created.Lot, "quantity": 0,
		"expiry_date": created.ExpiryDate, "warehouse": created.Warehouse,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.InventoryItem](t, rec)
	assert.Equal(t, int64(0), updated.Quantity)
	assert.Equal(t, domain.StatusOutOfStock, updated.Status)

	rec = a.do(http.MethodGet, "/inventory?warehouse=Antimicrobianos&q=vanco", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.InventoryItem](t, rec), 1)

	// warehouse matches exactly, never by substring
	for _, other := range []string{"GARANTIA", "antimicrobianos", "Insumos"} {
		rec = a.do(http.MethodGet, "/inventory?warehouse="+other, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]domain.InventoryItem](t, rec), other)
	}

	rec = a.do(http.MethodDelete, "/inventory/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/inventory/"+created.ID, token, nil).Code)

	rec = a.do(http.MethodGet, "/activities?type=inventory", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acts := decode[[]domain.Activity](t, rec)
	require.Len(t, acts, 3)
	assert.Equal(t, domain.ActionRemove, acts[0].Action)
	assert.Equal(t, domain.ActionUpdate, acts[1].Action)
	assert.Equal(t, domain.ActionAdd, acts[2].Action)
	assert.Equal(t, "Jefe de Farmacia", acts[0].UserName)
}

func TestInventoryValidation(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("admin", "Admin123!")

	rec := a.do(http.MethodPost, "/inventory", token, map[string]any{
		"name": "ab", "lot": "LOT-1", "quantity": 5, "expiry_date": "2099-01-01", "warehouse": domain.WarehouseNPT,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[map[string]string](t, rec)["field"])

	rec = a.do(http.MethodPost, "/inventory", token, map[string]any{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/inventory?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMigrateAndReports(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("admin", "Admin123!")

	rec := a.do(http.MethodPost, "/api/migrate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[seed.Result](t, rec)
	assert.True(t, first.Success)
	assert.Equal(t, 40, first.Count)

	rec = a.do(http.MethodPost, "/api/migrate", token, nil)
	again := decode[seed.Result](t, rec)
	assert.False(t, again.Success)
	assert.Contains(t, again.Message, "40")

	rec = a.do(http.MethodGet, "/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(40), decode[map[string]any](t, rec)["total_lots"])

	rec = a.do(http.MethodGet, "/reports/warehouses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), len(domain.Warehouses))

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/reports/expiring?days=30", token, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/reports/consumption", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/reports/consumption?months=0", token, nil).Code)

	rec = a.do(http.MethodGet, "/inventory/suggest?q=a", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.LessOrEqual(t, len(decode[[]domain.InventoryItem](t, rec)), 10)
}

func TestExports(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("admin", "Admin123!")

	rec := a.do(http.MethodGet, "/inventory/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="inventario.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ID,Nombre,Lote"))

	rec = a.do(http.MethodGet, "/activities/export?format=xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="actividades.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/inventory/export?format=pdf", token, nil).Code)
}

func TestUsersAdmin(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("admin", "Admin123!")

	rec := a.do(http.MethodPost, "/users", token, map[string]string{
		"username": "enfermera", "email": "enfermera@hospital.com", "name": "Enfermera Turno",
		"password": "Turno123!", "role": "nurse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/users", token, map[string]string{
		"username": "enfermera", "email": "otra@hospital.com", "name": "Otra",
		"password": "Turno123!", "role": "nurse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.User](t, rec), 4)

	a.login("enfermera", "Turno123!")
}

func TestMeLogoutAndPassword(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("asistente", "Asistente123!")

	rec := a.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asistente", decode[domain.User](t, rec).Username)

	rec = a.do(http.MethodPost, "/auth/password", token, passwordRequest{CurrentPassword: "wrong", NewPassword: "Nueva123!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/auth/password", token, passwordRequest{CurrentPassword: "Asistente123!", NewPassword: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/auth/password", token, passwordRequest{CurrentPassword: "Asistente123!", NewPassword: "Nueva123!"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	a.login("asistente", "Nueva123!")

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/auth/logout", token, nil).Code)
	acts, err := a.acts.List(context.Background(), repository.ActivityFilter{Type: domain.ActivityLogout})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestStaticAuthMode(t *testing.T) {
	a := newTestAPI(t, staticAuth)
	token := a.login("garcia", auth.DemoPassword)

	rec := a.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dr. García", decode[domain.User](t, rec).Name)

	rec = a.do(http.MethodPost, "/auth/password", token, passwordRequest{CurrentPassword: auth.DemoPassword, NewPassword: "Nueva123!"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = a.do(http.MethodGet, "/activities?type=login", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acts := decode[[]domain.Activity](t, rec)
	require.Len(t, acts, 1)
	assert.Equal(t, "Dr. García", acts[0].UserName)

	rec = a.do(http.MethodPost, "/auth/login", "", loginRequest{Username: "admin", Password: "Admin123!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispensingEndpoints(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("farmacia", "Farmacia123!")

	rec := a.do(http.MethodGet, "/dispensing", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[dispensingState](t, rec)
	assert.False(t, state.Paused)
	assert.Len(t, state.Records, 3)

	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/dispensing/pause", token, nil).Code)
	assert.True(t, a.feed.Paused())
	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/dispensing/resume", token, nil).Code)
	assert.False(t, a.feed.Paused())

	rec = a.do(http.MethodPost, "/dispensing/17430/dispensed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.DispenseRecord](t, rec).Dispensed)

	// toggling back is not audited
	rec = a.do(http.MethodPost, "/dispensing/17430/dispensed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.DispenseRecord](t, rec).Dispensed)

	acts, err := a.acts.List(context.Background(), repository.ActivityFilter{Actions: []string{domain.ActionDispense}})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, int64(2), *acts[0].Quantity)
	assert.Equal(t, "Surtimiento 17430 (Lote: J24T017-A)", *acts[0].Details)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/dispensing/00000/dispensed", token, nil).Code)
}

func TestMarkDispensedRollsBackWhenAuditFails(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("farmacia", "Farmacia123!")
	require.NoError(t, a.db.Close())

	rec := a.do(http.MethodPost, "/dispensing/17219/dispensed", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"unable to record dispense"}`, rec.Body.String())

	for _, r := range a.feed.Snapshot() {
		assert.False(t, r.Dispensed, r.Folio)
	}
}

func TestDispensingStream(t *testing.T) {
	a := newTestAPI(t, databaseAuth)
	token := a.login("farmacia", "Farmacia123!")

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/dispensing/stream?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// keep generating until the subscription is registered and a frame arrives
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.feed.Generate()
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var record domain.DispenseRecord
	require.NoError(t, conn.ReadJSON(&record))
	assert.NotEmpty(t, record.Folio)
	assert.True(t, record.IsNew)
}
