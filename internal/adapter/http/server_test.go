package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/http"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/dashboard"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/snapshot"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationsCSV = "id,feeder,name,consumers,isOut\n" +
	"s1,F1,Alpha,40,true\n" +
	"s2,F1,Bravo,60,false\n" +
	"s3,F2,Charlie,100,false\n"

var testNow = time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type testEnv struct {
	srv   *httpadapter.Server
	store *dashboard.Store
}

func newEnv(t *testing.T, opts httpadapter.Options) testEnv {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	snaps := snapshot.NewService(snapshot.NewMemoryKV(), nil, logger, metrics)
	store := dashboard.NewStore(nil, snaps, logger, metrics)

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"*"}
	}
	srv := httpadapter.NewServer(opts, store, snaps, store, logger)
	return testEnv{srv: srv, store: store}
}

func newTestServer(readyErr error) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	snaps := snapshot.NewService(snapshot.NewMemoryKV(), nil, logger, metrics)
	store := dashboard.NewStore(nil, snaps, logger, metrics)
	return httpadapter.NewServer(httpadapter.Options{Addr: ":0"}, store, snaps, &mockReadiness{err: readyErr}, logger)
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func importCSV(t *testing.T, env testEnv) {
	t.Helper()
	rec := do(t, env.srv, http.MethodPost, "/api/stations/import", "text/csv", stationsCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/readyz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(fmt.Errorf("not ready yet")), http.MethodGet, "/readyz", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestReadyzFollowsStoreLoad(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, env.srv, http.MethodGet, "/readyz", "", "").Code)
	importCSV(t, env)
	assert.Equal(t, http.StatusOK, do(t, env.srv, http.MethodGet, "/readyz", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- dashboard ---

func TestImportAndDashboard(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	rec := do(t, env.srv, http.MethodPost, "/api/stations/import", "text/csv; charset=utf-8", stationsCSV+",F3,,5\n")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[dashboard.ImportSummary](t, rec)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 2, summary.Feeders)
	require.Len(t, summary.Dropped, 1)
	assert.Equal(t, 3, summary.Dropped[0].Index)

	rec = do(t, env.srv, http.MethodGet, "/api/dashboard", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Feeders  []domain.FeederGroup `json:"feeders"`
		Totals   domain.Totals        `json:"totals"`
		ReadOnly bool                 `json:"readOnly"`
	}](t, rec)
	assert.Equal(t, 200, body.Totals.Total)
	assert.Equal(t, 40, body.Totals.Affected)
	assert.False(t, body.ReadOnly)
	require.Len(t, body.Feeders, 2)
	assert.Equal(t, "F1", body.Feeders[0].Name)
}

func TestImportJSONAndYAML(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	rec := do(t, env.srv, http.MethodPost, "/api/stations/import", "application/json",
		`[{"feeder":"F1","name":"A","consumers":10,"isOut":true}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, env.store.Aggregate().Totals.Affected)

	rec = do(t, env.srv, http.MethodPost, "/api/stations/import", "application/yaml",
		"- feeder: F2\n  name: B\n  consumers: 5\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.store.Aggregate().Totals.Total)
}

func TestImportErrors(t *testing.T) {
	env := newEnv(t, httpadapter.Options{MaxBodyBytes: 256})
	importCSV(t, env)

	rec := do(t, env.srv, http.MethodPost, "/api/stations/import", "image/png", "x")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(t, env.srv, http.MethodPost, "/api/stations/import", "application/json", `{"not":"an array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "import json")

	rec = do(t, env.srv, http.MethodPost, "/api/stations/import", "text/csv", "name\n"+strings.Repeat("a", 400)+"\n")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Len(t, env.store.Stations(), 3, "failed imports keep the previous state")
}

func TestStationsQuery(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})
	importCSV(t, env)

	rec := do(t, env.srv, http.MethodGet, "/api/stations?q=a&feeder=F1&pageSize=25", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[domain.Page](t, rec)
	assert.Equal(t, 2, page.TotalRows)
	assert.Equal(t, 25, page.PageSize)

	rec = do(t, env.srv, http.MethodGet, "/api/stations?affected=true&pageSize=all", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[domain.Page](t, rec)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Alpha", page.Rows[0].Name)
	assert.Equal(t, domain.PageSizeAll, page.PageSize)

	rec = do(t, env.srv, http.MethodGet, "/api/stations?page=7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.Page](t, rec).Page)

	for _, bad := range []string{"affected=maybe", "page=two", "pageSize=big"} {
		rec = do(t, env.srv, http.MethodGet, "/api/stations?"+bad, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestToggles(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})
	importCSV(t, env)

	rec := do(t, env.srv, http.MethodPost, "/api/feeders/F2/toggle", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"feeder": "F2", "off": true}, decode[map[string]any](t, rec))
	assert.Equal(t, 140, env.store.Aggregate().Totals.Affected)

	rec = do(t, env.srv, http.MethodPost, "/api/stations/s1/toggle", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "s1", "isOut": false}, decode[map[string]any](t, rec))

	rec = do(t, env.srv, http.MethodPost, "/api/stations/missing/toggle", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})
	importCSV(t, env)

	rec := do(t, env.srv, http.MethodGet, "/api/stations/export", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stations.csv")
	assert.Equal(t, stationsCSV, rec.Body.String())
}

func TestReadOnlyRejectsMutations(t *testing.T) {
	env := newEnv(t, httpadapter.Options{ReadOnly: true})
	env.store.Import("csv", nil)

	for _, target := range []string{
		"/api/stations/import",
		"/api/feeders/F1/toggle",
		"/api/stations/s1/toggle",
		"/api/dashboard/publish",
	} {
		rec := do(t, env.srv, http.MethodPost, target, "text/csv", stationsCSV)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
	assert.Empty(t, env.store.Stations())

	rec := do(t, env.srv, http.MethodGet, "/api/dashboard", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["readOnly"])
}

func TestPublishAndRemote(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})
	importCSV(t, env)
	do(t, env.srv, http.MethodPost, "/api/feeders/F2/toggle", "", "")

	rec := do(t, env.srv, http.MethodPost, "/api/dashboard/publish", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[domain.Snapshot](t, rec)
	assert.Equal(t, 140, snap.Affected)
	assert.Equal(t, 70.0, snap.Pct)

	rec = do(t, env.srv, http.MethodGet, "/api/dashboard/remote", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	remote := decode[domain.Snapshot](t, rec)
	assert.Equal(t, 140, remote.Affected)
	require.NotNil(t, remote.UpdatedAt)
	assert.True(t, testNow.Equal(*remote.UpdatedAt))
}

// --- snapshot store ---

func TestSnapshotReadBeforePublish(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	rec := do(t, env.srv, http.MethodGet, "/api/snapshot", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"affected":0,"total":0,"healthy":0,"pct":0,"subsOff":0,"subsOn":0,"subsTotal":0,"offPct":0,"updatedAt":null}`, rec.Body.String())
}

func TestSnapshotPublishDerivesFields(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	rec := do(t, env.srv, http.MethodPost, "/api/snapshot", "application/json", `{"affected":1,"healthy":2,"subsOff":2,"subsTotal":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, env.srv, http.MethodGet, "/api/snapshot", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"affected":1,"total":3,"healthy":2,"pct":33.3,"subsOff":2,"subsOn":1,"subsTotal":3,"offPct":66.7,"updatedAt":"2024-04-26T15:10:00Z"}`, rec.Body.String())
}

func TestSnapshotPublishRejectsMalformed(t *testing.T) {
	env := newEnv(t, httpadapter.Options{})

	for name, body := range map[string]string{
		"not an object":     `[1]`,
		"wrong type":        `{"affected":"many"}`,
		"negative":          `{"affected":-1,"total":3}`,
		"affected too high": `{"affected":4,"total":3}`,
		"oversized count":   `{"affected":1e300,"total":10}`,
		"not json":          `affected=1`,
	} {
		rec := do(t, env.srv, http.MethodPost, "/api/snapshot", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec := do(t, env.srv, http.MethodGet, "/api/snapshot", "", "")
	assert.Contains(t, rec.Body.String(), `"updatedAt":null`, "rejected bodies must not be stored")
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSnapshotPublishBodyErrors(t *testing.T) {
	env := newEnv(t, httpadapter.Options{MaxBodyBytes: 64})

	rec := do(t, env.srv, http.MethodPost, "/api/snapshot", "application/json",
		`{"affected":1,"total":2,"pad":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshot", failingBody{})
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection reset")
}

func TestSnapshotAllowedInReadOnly(t *testing.T) {
	env := newEnv(t, httpadapter.Options{ReadOnly: true})

	rec := do(t, env.srv, http.MethodPost, "/api/snapshot", "application/json", `{"affected":1,"total":2}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t, httpadapter.Options{AllowedOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/stations", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
