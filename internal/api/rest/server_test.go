package rest

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

	"github.com/KevinKickass/OpenCircuitCore/internal/api/websocket"
	"github.com/KevinKickass/OpenCircuitCore/internal/auth"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/interfaces"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const blinkYAML = `
name: blink
board: uno
components:
  - id: led-1
    kind: led
  - id: button-1
    kind: pushbutton
wires:
  - from: {component: board, pin: "13"}
    to: {component: led-1, pin: A}
  - from: {component: board, pin: GND}
    to: {component: led-1, pin: C}
  - from: {component: button-1, pin: 2.l}
    to: {component: board, pin: "2"}
`

type fakeLifecycle struct {
	cfg      *config.Config
	loader   *circuit.Loader
	composer *circuit.Composer
	logger   *zap.Logger

	mu      sync.Mutex
	session *simulation.Session
}

func newFakeLifecycle(t *testing.T) *fakeLifecycle {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	logger := zaptest.NewLogger(t)
	loader, err := circuit.NewLoader(nil)
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeLifecycle{
		cfg:      cfg,
		loader:   loader,
		composer: circuit.NewComposer(loader.Validator(), logger),
		logger:   logger,
	}
	doc, err := loader.Parse([]byte(blinkYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.LoadCircuit(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Session().Close() })
	return f
}

func (f *fakeLifecycle) Config() *config.Config           { return f.cfg }
func (f *fakeLifecycle) Storage() *storage.PostgresClient { return nil }
func (f *fakeLifecycle) Loader() *circuit.Loader          { return f.loader }

func (f *fakeLifecycle) Session() *simulation.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeLifecycle) LoadCircuit(_ context.Context, doc *circuit.Document) error {
	c, err := f.composer.Compose(doc)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil {
		f.session.Close()
	}
	f.session = simulation.NewSession(c, simulation.DefaultOptions(), f.logger)
	return nil
}

func (f *fakeLifecycle) GetCurrentStatus() interfaces.SystemStatus {
	return interfaces.SystemStatus{State: "RUNNING", Circuit: f.Session().Circuit().Name}
}

func (f *fakeLifecycle) Shutdown(context.Context) error { return nil }

func newTestServer(t *testing.T) (*Server, *fakeLifecycle) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	lm := newFakeLifecycle(t)
	return NewServer(lm.cfg, lm, zaptest.NewLogger(t), websocket.NewHub(zaptest.NewLogger(t))), lm
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%v: %s", err, rec.Body.String())
	}
	return out
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) map[string]any {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
	return decode(t, rec)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error body: %v", body)
	}
	return e["code"].(string)
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := newTestServer(t)
	if body := expect(t, do(t, s, http.MethodGet, "/health", nil), http.StatusOK); body["status"] != "ok" {
		t.Fatalf("health = %v", body)
	}
	if body := expect(t, do(t, s, http.MethodGet, "/api/v1/system/status", nil), http.StatusOK); body["circuit"] != "blink" {
		t.Fatalf("status = %v", body)
	}
}

func TestBoards(t *testing.T) {
	s, _ := newTestServer(t)

	body := expect(t, do(t, s, http.MethodGet, "/api/v1/boards", nil), http.StatusOK)
	if body["count"].(float64) != 3 {
		t.Fatalf("boards = %v", body)
	}

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/boards/uno/pins/D13", nil), http.StatusOK)
	if body["mapped"] != true || body["port"] != "B" || body["bit"].(float64) != 5 || body["canonical"] != "13" {
		t.Fatalf("D13 = %v", body)
	}

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/boards/uno/pins/GND", nil), http.StatusOK)
	if body["mapped"] != false {
		t.Fatalf("GND = %v", body)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/boards/due", nil)
	if code := errorCode(t, expect(t, rec, http.StatusNotFound)); code != types.CodeNotFound {
		t.Fatalf("code = %s", code)
	}

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/components/kinds", nil), http.StatusOK)
	if body["count"].(float64) != 4 {
		t.Fatalf("kinds = %v", body)
	}
}

func TestWireCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	body := expect(t, do(t, s, http.MethodGet, "/api/v1/circuit/wires", nil), http.StatusOK)
	if body["count"].(float64) != 3 {
		t.Fatalf("wires = %v", body)
	}

	created := expect(t, do(t, s, http.MethodPost, "/api/v1/circuit/wires", gin.H{
		"from": gin.H{"component_id": "led-1", "pin_name": "A"},
		"to":   gin.H{"component_id": "board", "pin_name": "SDA"},
	}), http.StatusCreated)
	if created["id"] != "wire-4" || created["signal"] != "serial" {
		t.Fatalf("created = %v", created)
	}
	from := created["from"].(map[string]any)
	if from["component_id"] != "board" {
		t.Fatalf("board endpoint must come first: %v", created)
	}

	updated := expect(t, do(t, s, http.MethodPatch, "/api/v1/circuit/wires/wire-4", gin.H{
		"label": "sda",
	}), http.StatusOK)
	if updated["metadata"].(map[string]any)["label"] != "sda" {
		t.Fatalf("updated = %v", updated)
	}

	expect(t, do(t, s, http.MethodGet, "/api/v1/circuit/wires/4", nil), http.StatusOK)
	expect(t, do(t, s, http.MethodDelete, "/api/v1/circuit/wires/4", nil), http.StatusOK)

	rec := do(t, s, http.MethodGet, "/api/v1/circuit/wires/4", nil)
	if code := errorCode(t, expect(t, rec, http.StatusNotFound)); code != types.CodeNotFound {
		t.Fatalf("code = %s", code)
	}
	expect(t, do(t, s, http.MethodGet, "/api/v1/circuit/wires/nope", nil), http.StatusBadRequest)
}

func TestCreateWireRejectsBadEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/circuit/wires", gin.H{
		"from": gin.H{"component_id": "led-1", "pin_name": "X"},
		"to":   gin.H{"component_id": "board", "pin_name": "7"},
	})
	expect(t, rec, http.StatusBadRequest)

	rec = do(t, s, http.MethodPost, "/api/v1/circuit/wires", gin.H{
		"from": gin.H{"component_id": "ghost", "pin_name": "A"},
		"to":   gin.H{"component_id": "board", "pin_name": "7"},
	})
	expect(t, rec, http.StatusNotFound)
}

func TestComponents(t *testing.T) {
	s, _ := newTestServer(t)

	body := expect(t, do(t, s, http.MethodPost, "/api/v1/circuit/components", gin.H{"kind": "led"}), http.StatusCreated)
	if body["id"] != "led-2" {
		t.Fatalf("generated id = %v", body["id"])
	}
	rec := do(t, s, http.MethodPost, "/api/v1/circuit/components", gin.H{"id": "led-2", "kind": "led"})
	expect(t, rec, http.StatusConflict)
	expect(t, do(t, s, http.MethodPost, "/api/v1/circuit/components", gin.H{"kind": "relay"}), http.StatusBadRequest)

	// led-1 still has wires
	expect(t, do(t, s, http.MethodDelete, "/api/v1/circuit/components/led-1", nil), http.StatusConflict)
	expect(t, do(t, s, http.MethodDelete, "/api/v1/circuit/components/led-2", nil), http.StatusOK)
	expect(t, do(t, s, http.MethodDelete, "/api/v1/circuit/components/led-2", nil), http.StatusNotFound)
}

func TestSimulationFlow(t *testing.T) {
	s, _ := newTestServer(t)

	// writes need a running session
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/ports/B", gin.H{"value": 32}), http.StatusConflict)

	body := expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/command", gin.H{"command": "start"}), http.StatusOK)
	if body["status"].(map[string]any)["state"] != "running" {
		t.Fatalf("start = %v", body)
	}
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/command", gin.H{"command": "start"}), http.StatusConflict)
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/command", gin.H{"command": "jump"}), http.StatusBadRequest)

	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/ports/portB", gin.H{"value": 32}), http.StatusOK)

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/simulation/indicators", nil), http.StatusOK)
	ind := body["indicators"].(map[string]any)
	if ind["led-1"] != true || ind["board:L"] != true {
		t.Fatalf("indicators = %v", ind)
	}

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/circuit/wires/wire-1/state", nil), http.StatusOK)
	if body["logical"] != "high" || body["direction"] != "forward" {
		t.Fatalf("wire-1 = %v", body)
	}

	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/components/button-1/press", nil), http.StatusOK)
	ports := expect(t, do(t, s, http.MethodGet, "/api/v1/simulation/ports", nil), http.StatusOK)
	if ports["D"].(float64) != 0 {
		t.Fatalf("pressed button must pull PD2 low: %v", ports)
	}
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/components/button-1/release", nil), http.StatusOK)
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/components/led-1/press", nil), http.StatusBadRequest)
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/components/ghost/press", nil), http.StatusNotFound)

	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/pins/D13", gin.H{"high": false}), http.StatusOK)
	expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/pins/GND", gin.H{"high": true}), http.StatusBadRequest)

	body = expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/command", gin.H{"command": "stop"}), http.StatusOK)
	if body["status"].(map[string]any)["state"] != "stopped" {
		t.Fatalf("stop = %v", body)
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	expect(t, do(t, s, http.MethodGet, "/api/v1/analysis/last", nil), http.StatusNotFound)

	snap := expect(t, do(t, s, http.MethodPost, "/api/v1/analysis", nil), http.StatusOK)
	if _, ok := snap["current_by_wire"]; !ok {
		t.Fatalf("snapshot = %v", snap)
	}
	expect(t, do(t, s, http.MethodGet, "/api/v1/analysis/last", nil), http.StatusOK)
	expect(t, do(t, s, http.MethodGet, "/api/v1/analysis/monitor", nil), http.StatusOK)
	expect(t, do(t, s, http.MethodGet, "/api/v1/analysis/events?severity=info", nil), http.StatusOK)

	rec := do(t, s, http.MethodGet, "/api/v1/circuit/netlist", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Dled_1") {
		t.Fatalf("netlist = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReplaceCircuit(t *testing.T) {
	s, lm := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/circuit", strings.NewReader("name: bare\nboard: nano\n"))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	body := expect(t, rec, http.StatusOK)
	if body["name"] != "bare" || body["board"] != "nano" || body["wires"].(float64) != 0 {
		t.Fatalf("replace = %v", body)
	}
	if lm.Session().Circuit().Name != "bare" {
		t.Fatal("session not replaced")
	}

	expect(t, do(t, s, http.MethodPut, "/api/v1/circuit", gin.H{"board": "due"}), http.StatusBadRequest)

	body = expect(t, do(t, s, http.MethodGet, "/api/v1/circuit", nil), http.StatusOK)
	if body["board"] != "nano" {
		t.Fatalf("export = %v", body)
	}
}

func TestStoredCircuitsNeedPersistence(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/circuits", nil)
	if code := errorCode(t, expect(t, rec, http.StatusServiceUnavailable)); code != types.CodeUnavailable {
		t.Fatalf("code = %s", code)
	}
	expect(t, do(t, s, http.MethodGet, "/api/v1/analysis/snapshots/"+"00000000-0000-0000-0000-000000000000", nil), http.StatusServiceUnavailable)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/circuit", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing allow-origin header")
	}
}

func TestAuthGuardsMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lm := newFakeLifecycle(t)
	hash, err := auth.HashPassword("s3cret", auth.HashParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatal(err)
	}
	lm.cfg.Auth = config.AuthConfig{Enabled: true, Secret: "0123456789abcdef", PasswordHash: hash, TokenTTL: time.Hour}
	s := NewServer(lm.cfg, lm, zaptest.NewLogger(t), websocket.NewHub(zaptest.NewLogger(t)))

	expect(t, do(t, s, http.MethodGet, "/api/v1/circuit/wires", nil), http.StatusOK)
	body := expect(t, do(t, s, http.MethodPost, "/api/v1/simulation/command", map[string]string{"command": "start"}), http.StatusUnauthorized)
	if errorCode(t, body) != types.CodeUnauthorized {
		t.Fatalf("code = %v", body)
	}

	body = expect(t, do(t, s, http.MethodPost, "/api/v1/auth/token", map[string]string{"password": "s3cret"}), http.StatusOK)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulation/command", strings.NewReader(`{"command":"start"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+body["token"].(string))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	expect(t, rec, http.StatusOK)
	if lm.Session().State() != simulation.StateRunning {
		t.Fatalf("state = %s", lm.Session().State())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{simulation.ErrNotRunning, http.StatusConflict},
		{circuit.ErrDuplicateComponent, http.StatusConflict},
		{storage.ErrNotFound, http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
