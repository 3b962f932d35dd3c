package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"plant-config/internal/catalog"
	"plant-config/internal/configio"
	"plant-config/internal/event"
	"plant-config/internal/store"
)

const smallLine = `{
  "production_line": {
    "id": "L1", "name": "装配线",
    "workstations": [
      {"id": "W1", "name": "车床", "type": "processing", "processing_time": {"type": "fixed", "value": 10}},
      {"id": "W2", "name": "包装", "type": "packaging", "processing_time": {"type": "fixed", "value": 4}}
    ],
    "buffers": [{"id": "B1", "name": "来料", "capacity": 5}],
    "transport_paths": [
      {"id": "P1", "from_location": "B1", "to_location": "W1", "transport_time": 1},
      {"id": "P2", "from_location": "W1", "to_location": "W2", "transport_time": 1}
    ]
  },
  "routines": [
    {"id": "R1", "name": "<gear>", "material_type": "gear", "start_location": "B1", "end_location": "W2",
     "steps": [
       {"id": "S1", "step_id": 1, "workstation_id": "W1", "operation": "processing"},
       {"id": "S2", "step_id": 2, "workstation_id": "W2", "operation": "packaging"}
     ]}
  ]
}`

type testServer struct {
	*httptest.Server
	api     *API
	store   *store.Store
	tracker *LineTracker
	bus     *event.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := store.New(context.Background(), db)
	require.NoError(t, err)

	bus := event.NewBus()
	tracker := NewLineTracker(nil)
	bus.Subscribe(event.LineImported, func(e event.Event) { tracker.LineImported(e.Seq, e.LineID, e.LineName, e.Stats) })

	api := NewAPI(API{
		Service:        configio.NewService(st, bus, logger),
		Catalog:        catalog.New(st, bus, logger),
		Store:          st,
		Tracker:        tracker,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, api: api, store: st, tracker: tracker, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) postJSON(t *testing.T, path, body string) *http.Response {
	return s.do(t, http.MethodPost, path, "application/json", strings.NewReader(body))
}

func upload(t *testing.T, filename, content string) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndTraceHeader(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)
}

func TestValidateEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.postJSON(t, "/api/config/validate", `{"routines": []}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[map[string]any](t, resp)
	assert.Equal(t, false, v["valid"])
	assert.Equal(t, []any{"缺少 production_line 字段"}, v["errors"])

	ct, body := upload(t, "line.yaml", "production_line:\n  name: 空产线\n")
	resp = s.do(t, http.MethodPost, "/api/config/validate-file", ct, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decode[map[string]any](t, resp)
	assert.Equal(t, true, v["valid"])

	ct, body = upload(t, "line.txt", "whatever")
	resp = s.do(t, http.MethodPost, "/api/config/validate-file", ct, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Detail, "line.txt")

	resp = s.postJSON(t, "/api/config/validate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportExportLifecycle(t *testing.T) {
	s := newTestServer(t)

	ct, body := upload(t, "line.json", smallLine)
	resp := s.do(t, http.MethodPost, "/api/config/import", ct, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[configio.Report](t, resp)
	assert.True(t, report.Success)
	assert.Equal(t, "L1", report.ProductionLineID)
	require.NotNil(t, report.Statistics)
	assert.Equal(t, 2, report.Statistics.RoutineSteps)

	// 相同产线 ID 再次导入
	resp = s.postJSON(t, "/api/config/import-json", smallLine)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/config/export/L1?format=yaml", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="production_line_L1.yaml"`, resp.Header.Get("Content-Disposition"))
	var exported map[string]any
	require.NoError(t, yaml.NewDecoder(resp.Body).Decode(&exported))
	assert.Contains(t, exported, "production_line")

	resp = s.do(t, http.MethodGet, "/api/config/export/L1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"<gear>"`)

	resp = s.do(t, http.MethodGet, "/api/config/export/L1?format=xml", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/config/export/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/config/validate-production-line/L1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["valid"])
	resp = s.do(t, http.MethodGet, "/api/config/validate-production-line/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/production-lines", "", nil)
	lines := decode[[]map[string]any](t, resp)
	require.Len(t, lines, 1)
	assert.Equal(t, "装配线", lines[0]["name"])

	resp = s.do(t, http.MethodGet, "/api/production-lines/L1", "", nil)
	detail := decode[lineDetail](t, resp)
	assert.Equal(t, 2, detail.Statistics.Workstations)

	s.bus.Wait()
	resp = s.do(t, http.MethodGet, "/api/state", "", nil)
	state := decode[GlobalState](t, resp)
	require.Len(t, state.Lines, 1)
	assert.Equal(t, "L1", state.Lines[0].ID)

	resp = s.do(t, http.MethodDelete, "/api/production-lines/L1", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/production-lines/L1", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportInvalidReturnsErrors(t *testing.T) {
	s := newTestServer(t)
	doc := `{"production_line": {"name": "x", "workstations": [{"name": "W", "type": "welding"}]}}`

	resp := s.postJSON(t, "/api/config/import-json", doc)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	report := decode[configio.Report](t, resp)
	assert.False(t, report.Success)
	assert.Equal(t, "配置验证失败", report.Message)
	assert.NotEmpty(t, report.Errors)
}

func TestRoutineLinkEndpoints(t *testing.T) {
	s := newTestServer(t)
	resp := s.postJSON(t, "/api/config/import-json", smallLine)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.postJSON(t, "/api/routines/R1/links", `{"from_step_id": "S1", "to_step_id": "S2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	link := decode[map[string]string](t, resp)
	assert.Regexp(t, `^link_[0-9a-f]{8}$`, link["id"])

	resp = s.postJSON(t, "/api/routines/R1/links", `{"from_step_id": "S1", "to_step_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = s.postJSON(t, "/api/routines/R9/links", `{"from_step_id": "S1", "to_step_id": "S2"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/routines/R1/links/"+link["id"], "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodDelete, "/api/routines/R1/links/"+link["id"], "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/routines/R1/steps/S2", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/production-lines/L1", "", nil)
	assert.Equal(t, 1, decode[lineDetail](t, resp).Statistics.RoutineSteps)
}

func TestTaxonomyEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.postJSON(t, "/api/config/material-types", `{"name": "钢材"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]string](t, resp)
	assert.Regexp(t, `^mattype_`, created["id"])

	resp = s.postJSON(t, "/api/config/material-types", `{"name": "钢材"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "类型名称 '钢材' 已存在", decode[errorBody](t, resp).Detail)

	// 不同类型表之间名称互不影响
	resp = s.postJSON(t, "/api/config/operation-types", `{"name": "钢材"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/config/material-types/"+created["id"], "application/json",
		strings.NewReader(`{"name": "铝材", "description": "轻"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "铝材", decode[map[string]string](t, resp)["name"])

	resp = s.do(t, http.MethodGet, "/api/config/material-types", "", nil)
	assert.Len(t, decode[[]map[string]string](t, resp), 1)

	resp = s.do(t, http.MethodDelete, "/api/config/material-types/"+created["id"], "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/config/material-types/"+created["id"], "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.do(t, http.MethodPut, "/api/config/material-types/"+created["id"], "application/json",
		strings.NewReader(`{"name": "铜材"}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuntimeStateEndpoints(t *testing.T) {
	s := newTestServer(t)
	resp := s.postJSON(t, "/api/config/import-json", smallLine)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	put := func(path, body string) *http.Response {
		return s.do(t, http.MethodPut, path, "application/json", strings.NewReader(body))
	}

	assert.Equal(t, http.StatusNoContent, put("/api/buffers/B1/level", `{"current_level": 5}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, put("/api/buffers/B1/level", `{"current_level": 6}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, put("/api/buffers/B1/level", `{}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, put("/api/buffers/B9/level", `{"current_level": 1}`).StatusCode)

	assert.Equal(t, http.StatusNoContent, put("/api/workstations/W1/status", `{"status": "breakdown"}`).StatusCode)
	resp = put("/api/workstations/W1/status", `{"status": "exploded"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "FIELD", string(decode[errorBody](t, resp).Code))
	assert.Equal(t, http.StatusNotFound, put("/api/workstations/W9/status", `{"status": "idle"}`).StatusCode)

	snap, err := s.store.LoadLine(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Buffers[0].CurrentLevel)
	for _, ws := range snap.Workstations {
		if ws.ID == "W1" {
			assert.Equal(t, "breakdown", string(ws.Status))
		}
	}
}

func TestNewAPIWrapsLoggerOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	api := NewAPI(API{Logger: logger, Tracker: NewLineTracker(nil)})
	assert.Equal(t, int64(DefaultMaxUploadBytes), api.MaxUploadBytes)

	api.Router()
	h := api.Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	line, err := logs.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(line, `"component":"api"`), line)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}
