package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlog/backend/internal/config"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
	"github.com/finlog/backend/internal/testdb"
)

func testConfig() config.Config {
	return config.Config{
		Environment: "development",
		Timezone:    "UTC",
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
		Ledger:      config.LedgerConfig{StrictUndo: true},
	}
}

func newRouter(t *testing.T) *gin.Engine {
	return newRouterWithNotifier(t, nil)
}

func newRouterWithNotifier(t *testing.T, notifier services.Notifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	require.NoError(t, Register(router, testdb.Open(t), testConfig(), notifier))
	return router
}

type capturedNotes struct {
	mu     sync.Mutex
	titles []string
}

func (n *capturedNotes) Notify(title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func TestRegister(t *testing.T) {
	router := newRouter(t)

	registered := map[string]bool{}
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/health",
		"POST /api/auth/login",
		"GET /api/history",
		"POST /api/history/add",
		"POST /api/history/undo",
		"POST /api/transaction/delete",
		"POST /api/category/update",
		"POST /api/goals/add-money",
		"GET /api/budget",
		"POST /api/budget/limits",
	} {
		assert.True(t, registered[want], "%s should be registered", want)
	}
}

func TestRegister_ProtectedRoutesNeedToken(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/api/history", "/api/transaction", "/api/budget", "/api/auth/me"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type client struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func (c *client) call(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func signUp(t *testing.T, router *gin.Engine, email string) *client {
	t.Helper()
	c := &client{t: t, router: router}
	w := c.call(http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": "correct-horse", "name": "Test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = c.call(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	c.token = resp.Token
	return c
}

func listHistory(t *testing.T, c *client, query string) []models.ActionRecord {
	t.Helper()
	w := c.call(http.MethodGet, "/api/history"+query, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var records []models.ActionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	return records
}

func TestLedgerFlow(t *testing.T) {
	router := newRouter(t)
	alice := signUp(t, router, "alice@example.com")
	bob := signUp(t, router, "bob@example.com")

	w := alice.call(http.MethodPost, "/api/budget", gin.H{"amount": 40000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = alice.call(http.MethodPost, "/api/budget", gin.H{"amount": 50000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	records := listHistory(t, alice, "?actionType=UPDATE_BUDGET")
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"amount":50000}`, string(records[0].NewData), "newest first")
	assert.Empty(t, listHistory(t, bob, ""), "ledgers are per user")

	w = bob.call(http.MethodPost, "/api/history/undo", gin.H{"id": records[0].ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = alice.call(http.MethodPost, "/api/history/undo", gin.H{"id": records[0].ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = alice.call(http.MethodGet, "/api/budget", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var budget struct {
		Amount float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &budget))
	assert.Equal(t, 40000.0, budget.Amount)

	assert.Len(t, listHistory(t, alice, "?actionType=UPDATE_BUDGET"), 1, "undone record is removed")

	w = alice.call(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestRegister_UndoNotifiesInjectedNotifier(t *testing.T) {
	notes := &capturedNotes{}
	router := newRouterWithNotifier(t, notes)
	alice := signUp(t, router, "alice@example.com")

	w := alice.call(http.MethodPost, "/api/budget", gin.H{"amount": 1200})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	records := listHistory(t, alice, "")
	require.Len(t, records, 1)

	w = alice.call(http.MethodPost, "/api/history/undo", gin.H{"id": records[0].ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	notes.mu.Lock()
	defer notes.mu.Unlock()
	assert.Equal(t, []string{"Finlog: action undone"}, notes.titles)
}
