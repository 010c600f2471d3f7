package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/opsdesk/internal/api/http/handlers"
	"github.com/spec-kit/opsdesk/internal/auth"
	"github.com/spec-kit/opsdesk/internal/events"
	"github.com/spec-kit/opsdesk/internal/lifecycle"
	"github.com/spec-kit/opsdesk/internal/observability"
	"github.com/spec-kit/opsdesk/internal/repository"
	"github.com/spec-kit/opsdesk/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, requireToken bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	repo := repository.NewMemoryTicketRepository()
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Engine:     lifecycle.NewEngine(),
		Cache:      service.NewTicketCache(32, 0, metrics),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    metrics,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("opsdesk", "test", map[string]handlers.Pinger{"store": repo}),
		Tickets:         handlers.NewTicketsHandler(svc),
		ActorMiddleware: auth.NewActorMiddleware(tokens, requireToken),
		Metrics:         metrics.Handler(),
	})
	return &testServer{app: app, tokens: tokens}
}

type response struct {
	status int
	header nethttp.Header
	body   map[string]any
	raw    []byte
}

func (s *testServer) do(t *testing.T, method, target string, body any, headers map[string]string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, header: resp.Header, raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func data(t *testing.T, r response) map[string]any {
	t.Helper()
	d, ok := r.body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", r.raw)
	return d
}

func errorCode(r response) string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestTicketRoutes_TroubleLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	created := s.do(t, fiber.MethodPost, "/tickets/trouble", map[string]any{
		"title":     "Mains Failure",
		"siteId":    "BDO001",
		"startTime": "2025-01-01T08:00",
		"reporters": []string{"Teknisi A"},
	}, nil)
	require.Equal(t, fiber.StatusCreated, created.status, string(created.raw))
	ticket := data(t, created)
	id := ticket["id"].(string)
	assert.Equal(t, "open", ticket["status"])
	assert.Len(t, ticket["history"], 1)
	assert.Equal(t, `"1"`, created.header.Get("ETag"))

	updated := s.do(t, fiber.MethodPut, "/tickets/trouble?id="+id, map[string]any{
		"status":            "process",
		"updateDescription": "Genset diganti",
		"updateReporters":   []string{"Teknisi B"},
	}, nil)
	require.Equal(t, fiber.StatusOK, updated.status, string(updated.raw))
	history := data(t, updated)["history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "process", history[1].(map[string]any)["status"])

	rejected := s.do(t, fiber.MethodPut, "/tickets/trouble?id="+id, map[string]any{"status": "closed"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, rejected.status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(rejected))
	fields := rejected.body["error"].(map[string]any)["details"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "updateDescription")
	assert.Contains(t, fields, "updateReporters")

	got := s.do(t, fiber.MethodGet, "/tickets/TROUBLE/"+id, nil, nil)
	require.Equal(t, fiber.StatusOK, got.status)
	assert.Equal(t, "process", data(t, got)["status"])

	byQuery := s.do(t, fiber.MethodGet, "/tickets/trouble?id="+id, nil, nil)
	assert.Equal(t, fiber.StatusOK, byQuery.status)

	hist := s.do(t, fiber.MethodGet, "/tickets/trouble/"+id+"/history?order=desc", nil, nil)
	require.Equal(t, fiber.StatusOK, hist.status)
	entries := hist.body["data"].([]any)
	assert.Equal(t, "Genset diganti", entries[0].(map[string]any)["description"])

	deleted := s.do(t, fiber.MethodDelete, "/tickets/trouble?id="+id, nil, nil)
	assert.Equal(t, fiber.StatusOK, deleted.status)

	missing := s.do(t, fiber.MethodDelete, "/tickets/trouble?id="+id, nil, nil)
	assert.Equal(t, fiber.StatusNotFound, missing.status)
	assert.Equal(t, "NOT_FOUND", errorCode(missing))
}

func TestTicketRoutes_ListWithMeta(t *testing.T) {
	s := newTestServer(t, false)
	for _, title := range []string{"Printer jam", "Projector broken", "Aircon leaking"} {
		r := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": title, "description": "please check"}, nil)
		require.Equal(t, fiber.StatusCreated, r.status, string(r.raw))
	}

	list := s.do(t, fiber.MethodGet, "/tickets/generic?q=pr&page_size=1&sort=createdAt", nil, nil)
	require.Equal(t, fiber.StatusOK, list.status)
	items := list.body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Printer jam", items[0].(map[string]any)["title"])
	meta := list.body["meta"].(map[string]any)
	assert.EqualValues(t, 2, meta["total"])
	assert.EqualValues(t, 1, meta["page_size"])

	stats := s.do(t, fiber.MethodGet, "/tickets/generic/stats", nil, nil)
	require.Equal(t, fiber.StatusOK, stats.status)
	assert.EqualValues(t, 3, data(t, stats)["total"])
}

func TestTicketRoutes_Errors(t *testing.T) {
	s := newTestServer(t, false)

	unknown := s.do(t, fiber.MethodGet, "/tickets/incident", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, unknown.status)
	assert.Equal(t, "UNKNOWN_KIND", errorCode(unknown))

	malformed := s.do(t, fiber.MethodPost, "/tickets/trouble", `{"reporters": "Teknisi A"}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, malformed.status)
	assert.Equal(t, "MALFORMED_PAYLOAD", errorCode(malformed))

	notJSON := s.do(t, fiber.MethodPost, "/tickets/trouble", `[1,2]`, nil)
	assert.Equal(t, "MALFORMED_PAYLOAD", errorCode(notJSON))

	invalid := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": "ab"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, invalid.status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(invalid))

	noID := s.do(t, fiber.MethodPut, "/tickets/generic", map[string]any{"title": "abc"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, noID.status)

	absent := s.do(t, fiber.MethodPut, "/tickets/generic?id=nope", map[string]any{"title": "abc"}, nil)
	assert.Equal(t, fiber.StatusNotFound, absent.status)

	route := s.do(t, fiber.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, route.status)
	assert.Equal(t, "NOT_FOUND", errorCode(route))
}

func TestTicketRoutes_IfMatchConflict(t *testing.T) {
	s := newTestServer(t, false)
	created := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": "Printer jam", "description": "paper stuck"}, nil)
	require.Equal(t, fiber.StatusCreated, created.status)
	id := data(t, created)["id"].(string)

	ok := s.do(t, fiber.MethodPut, "/tickets/generic/"+id, map[string]any{"title": "Printer jam 2"}, map[string]string{"If-Match": `"1"`})
	require.Equal(t, fiber.StatusOK, ok.status, string(ok.raw))
	assert.Equal(t, `"2"`, ok.header.Get("ETag"))

	stale := s.do(t, fiber.MethodPut, "/tickets/generic/"+id, map[string]any{"title": "Printer jam 3"}, map[string]string{"If-Match": `"1"`})
	assert.Equal(t, fiber.StatusConflict, stale.status)
	assert.Equal(t, "CONFLICT", errorCode(stale))
}

func TestTicketRoutes_ActorFromTokenOrHeader(t *testing.T) {
	s := newTestServer(t, false)
	token, _, err := s.tokens.GenerateToken("Operator Rina")
	require.NoError(t, err)

	viaToken := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": "Printer jam", "description": "paper stuck"},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, fiber.StatusCreated, viaToken.status)
	entry := data(t, viaToken)["history"].([]any)[0].(map[string]any)
	assert.Equal(t, "Operator Rina", entry["actor"])

	viaHeader := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": "Printer jam", "description": "paper stuck"},
		map[string]string{auth.ActorHeader: "Desk Budi"})
	entry = data(t, viaHeader)["history"].([]any)[0].(map[string]any)
	assert.Equal(t, "Desk Budi", entry["actor"])

	anonymous := s.do(t, fiber.MethodPost, "/tickets/generic", map[string]any{"title": "Printer jam", "description": "paper stuck"}, nil)
	entry = data(t, anonymous)["history"].([]any)[0].(map[string]any)
	assert.Equal(t, "System", entry["actor"])

	badToken := s.do(t, fiber.MethodGet, "/tickets/generic", nil, map[string]string{"Authorization": "Bearer nonsense"})
	assert.Equal(t, fiber.StatusUnauthorized, badToken.status)
}

func TestTicketRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, true)

	denied := s.do(t, fiber.MethodGet, "/tickets/generic", nil, map[string]string{auth.ActorHeader: "Desk Budi"})
	assert.Equal(t, fiber.StatusUnauthorized, denied.status)

	token, _, err := s.tokens.GenerateToken("Operator Rina")
	require.NoError(t, err)
	allowed := s.do(t, fiber.MethodGet, "/tickets/generic", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, fiber.StatusOK, allowed.status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	live := s.do(t, fiber.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, live.status)

	ready := s.do(t, fiber.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusOK, ready.status)
	assert.Equal(t, "ok", ready.body["dependencies"].(map[string]any)["store"])

	s.do(t, fiber.MethodGet, "/tickets/generic", nil, nil)
	metrics := s.do(t, fiber.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, fiber.StatusOK, metrics.status)
	assert.Contains(t, string(metrics.raw), "opsdesk_http_requests_total")
}
