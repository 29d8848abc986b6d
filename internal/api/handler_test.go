package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahrdadan/browserd/internal/api"
	"github.com/ahrdadan/browserd/internal/browser/browsertest"
	"github.com/ahrdadan/browserd/internal/events"
	"github.com/ahrdadan/browserd/internal/metrics"
	"github.com/ahrdadan/browserd/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const examplePage = "<html><head><title>Example Domain</title></head><body><h1>Example Domain</h1></body></html>"

type testServer struct {
	app     *fiber.App
	engine  *browsertest.Engine
	manager *session.Manager
}

func setupTestApp(t *testing.T) *testServer {
	t.Helper()

	engine := browsertest.New(map[string]string{
		"#btn":  "Submit",
		"#name": "",
		"h1":    "Example Domain",
	})
	engine.Pages["https://example.com"] = examplePage

	collector := metrics.NewCollector("browserd")
	manager := session.NewManager(engine, session.Options{
		Retry:          session.RetryPolicy{MaxAttempts: 3},
		Humanizer:      session.NoopHumanizer{},
		ElementTimeout: 50 * time.Millisecond,
		Metrics:        collector,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})
	api.SetupRoutes(app, manager, api.RouteConfig{
		Hub:     events.NewHub(),
		Metrics: collector,
	})

	return &testServer{app: app, engine: engine, manager: manager}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func (s *testServer) launch(t *testing.T, id string) {
	t.Helper()
	code, body := s.do(t, "POST", "/launch-browser", `{"sessionId":"`+id+`","url":"https://example.com"}`)
	require.Equal(t, fiber.StatusOK, code, body)
}

func TestHealthCheck(t *testing.T) {
	s := setupTestApp(t)

	code, body := s.do(t, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["activeSessions"])
	assert.NotEmpty(t, body["timestamp"])

	s.launch(t, "s1")
	_, body = s.do(t, "GET", "/health", "")
	assert.Equal(t, float64(1), body["activeSessions"])
}

func TestLaunchAndPageHTML(t *testing.T) {
	s := setupTestApp(t)

	code, body := s.do(t, "POST", "/launch-browser", `{"sessionId":"s1_1000","url":"https://example.com"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "s1_1000", body["sessionId"])
	assert.Equal(t, "Browser launched successfully", body["message"])

	code, body = s.do(t, "GET", "/page-html/s1_1000", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body["html"], "<h1>Example Domain</h1>")
}

func TestClickUnknownSession(t *testing.T) {
	s := setupTestApp(t)

	code, body := s.do(t, "POST", "/click-element", `{"sessionId":"unknown","selector":"#btn"}`)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, map[string]interface{}{"error": "Session not found"}, body)
}

func TestUnknownSessionEveryRoute(t *testing.T) {
	s := setupTestApp(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{"POST", "/navigate", `{"sessionId":"nope","url":"https://example.com"}`},
		{"GET", "/page-html/nope", ""},
		{"POST", "/fill-input", `{"sessionId":"nope","selector":"#name","value":"x"}`},
		{"POST", "/wait-for-element", `{"sessionId":"nope","selector":"#btn"}`},
		{"POST", "/scroll-to-element", `{"sessionId":"nope","selector":"#btn"}`},
		{"POST", "/extract-text", `{"sessionId":"nope","selector":"h1"}`},
		{"DELETE", "/close-session/nope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, body := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, fiber.StatusNotFound, code)
			assert.Equal(t, "Session not found", body["error"])
		})
	}
}

func TestCloseThenNavigate(t *testing.T) {
	s := setupTestApp(t)
	s.launch(t, "s1_1000")

	code, body := s.do(t, "DELETE", "/close-session/s1_1000", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Session closed", body["message"])

	code, _ = s.do(t, "POST", "/navigate", `{"sessionId":"s1_1000","url":"https://example.com"}`)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.True(t, s.engine.Processes()[0].Closed())
}

func TestValidation(t *testing.T) {
	s := setupTestApp(t)

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"launch without url", "/launch-browser", `{"sessionId":"s1"}`, "sessionId and url are required"},
		{"navigate without id", "/navigate", `{"url":"https://example.com"}`, "sessionId and url are required"},
		{"click without selector", "/click-element", `{"sessionId":"s1"}`, "sessionId and selector are required"},
		{"fill without value", "/fill-input", `{"sessionId":"s1","selector":"#name"}`, "sessionId, selector, and value are required"},
		{"wait without selector", "/wait-for-element", `{"sessionId":"s1"}`, "sessionId and selector are required"},
		{"scroll without id", "/scroll-to-element", `{"selector":"#btn"}`, "sessionId and selector are required"},
		{"extract without selector", "/extract-text", `{"sessionId":"s1"}`, "sessionId and selector are required"},
		{"malformed json", "/launch-browser", `{"sessionId":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, code)
			assert.Equal(t, tt.want, body["error"])
		})
	}
	assert.Empty(t, s.engine.Processes())
}

func TestInteractions(t *testing.T) {
	s := setupTestApp(t)
	s.launch(t, "s1")
	page := s.engine.Processes()[0].FakePage()

	code, body := s.do(t, "POST", "/click-element", `{"sessionId":"s1","selector":"#btn"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Element clicked successfully", body["message"])
	assert.Equal(t, []string{"#btn"}, page.Clicks())

	code, body = s.do(t, "POST", "/fill-input", `{"sessionId":"s1","selector":"#name","value":"Ada"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Input filled successfully", body["message"])
	assert.Equal(t, "Ada", page.Typed("#name"))

	code, _ = s.do(t, "POST", "/fill-input", `{"sessionId":"s1","selector":"#name","value":""}`)
	assert.Equal(t, fiber.StatusOK, code, "empty value is allowed")

	code, body = s.do(t, "POST", "/wait-for-element", `{"sessionId":"s1","selector":"h1","timeout":1000}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Element found", body["message"])

	code, body = s.do(t, "POST", "/scroll-to-element", `{"sessionId":"s1","selector":"#btn"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Scrolled to element", body["message"])

	code, body = s.do(t, "POST", "/extract-text", `{"sessionId":"s1","selector":"h1"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Example Domain", body["text"])

	code, body = s.do(t, "POST", "/navigate", `{"sessionId":"s1","url":"https://example.org"}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Navigation successful", body["message"])
	assert.Equal(t, "https://example.org", page.URL())
}

func TestWaitForElementTimeout(t *testing.T) {
	s := setupTestApp(t)
	s.launch(t, "s1")

	code, body := s.do(t, "POST", "/wait-for-element", `{"sessionId":"s1","selector":"#missing","timeout":25}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, `waiting for selector "#missing" failed: 25ms exceeded`, body["error"])
}

func TestLaunchNavigationFailure(t *testing.T) {
	s := setupTestApp(t)
	s.engine.NavigateErrs = []error{
		errors.New("net::ERR_CONNECTION_REFUSED"),
		errors.New("net::ERR_CONNECTION_REFUSED"),
		errors.New("net::ERR_NAME_NOT_RESOLVED at https://nowhere.invalid"),
	}

	code, body := s.do(t, "POST", "/launch-browser", `{"sessionId":"s1","url":"https://nowhere.invalid"}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED at https://nowhere.invalid", body["error"])
	assert.Equal(t, 0, s.manager.Count())
}

func TestLaunchEngineFailure(t *testing.T) {
	s := setupTestApp(t)
	s.engine.LaunchErr = errors.New("failed to launch chrome: executable not found")

	code, body := s.do(t, "POST", "/launch-browser", `{"sessionId":"s1","url":"https://example.com"}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "failed to launch chrome: executable not found", body["error"])
}

func TestListSessions(t *testing.T) {
	s := setupTestApp(t)
	s.launch(t, "b")
	s.launch(t, "a")

	code, body := s.do(t, "GET", "/sessions", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])

	list, ok := body["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "a", first["sessionId"])
	assert.Equal(t, "https://example.com", first["url"])
	assert.NotEmpty(t, first["userAgent"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestApp(t)
	s.launch(t, "s1")
	s.do(t, "POST", "/click-element", `{"sessionId":"unknown","selector":"#btn"}`)

	code, body := s.do(t, "GET", "/metrics", "")
	require.Equal(t, fiber.StatusOK, code)
	raw := body["raw"].(string)
	assert.Contains(t, raw, "browserd_active_sessions 1")
	assert.Contains(t, raw, `browserd_session_launches_total{result="ok"} 1`)
	assert.Contains(t, raw, `path="/click-element",status="404"`)
}

func TestEventsRequiresUpgrade(t *testing.T) {
	s := setupTestApp(t)

	code, _ := s.do(t, "GET", "/events", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, code)
}

func TestSecurityHeaders(t *testing.T) {
	s := setupTestApp(t)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
