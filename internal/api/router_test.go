package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/timmy/hrsync/internal/api/handler"
	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/notify"
	"github.com/timmy/hrsync/internal/repository"
	"github.com/timmy/hrsync/internal/service"
	"github.com/timmy/hrsync/internal/source/staging"
)

type testServer struct {
	t   *testing.T
	dir string
	h   http.Handler
}

type stubChannel struct {
	name string
	err  error
}

func (s stubChannel) Notify(context.Context, notify.Notification) error { return s.err }

func (s stubChannel) String() string { return s.name }

func newTestServer(t *testing.T, channels ...notify.Notifier) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))

	dir := t.TempDir()
	var notifier *notify.Service
	if len(channels) > 0 {
		notifier = notify.NewService("", channels...)
	}
	src := staging.NewAdapter(dir)
	patterns := map[domain.FileType][]string{
		domain.FileTypeEmployeeRoster:     {"empleados"},
		domain.FileTypeTerminationReasons: {"motivos"},
		domain.FileTypeAttendance:         {"prenomina"},
	}
	pipeline := service.NewPipeline(service.PipelineDeps{DB: db, Source: src}, service.PipelineConfig{
		Patterns:      patterns,
		Tolerance:     0.5,
		SkipProcessed: true,
		YearPivot:     50,
		Writer:        service.WriterConfig{BatchSize: 50, Concurrency: 1},
	})

	r := SetupRouter(Services{
		DB:        db,
		Pipeline:  pipeline,
		Approvals: service.NewApprovalService(db),
		Scheduler: service.NewScheduler(db, pipeline, service.SchedulerConfig{}),
		Inspector: service.NewSourceInspector(src, patterns),
		Notifier:  notifier,
	}, config.ServerConfig{
		Mode: "test",
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://admin.example.com"}},
	}, logger.New(nil))

	return &testServer{t: t, dir: dir, h: r}
}

func (s *testServer) write(name, content string) {
	require.NoError(s.t, os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644))
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/health", "", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartRun_Validation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/runs", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"payroll"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, w).Error, "payroll")

	w = s.do(http.MethodGet, "/api/v1/runs?file_type=payroll", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRun_FailedRunIsReported(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"attendance"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handler.RunResponse](t, w)
	require.NotNil(t, resp.Run)
	assert.Equal(t, domain.RunStatusFailed, resp.Run.Status)
	assert.Equal(t, domain.TriggerAPI, resp.Run.Trigger)
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.Run.ErrorSummary)
}

func TestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	s.write("Alta de empleados.csv", "Numero,Nombres,Apellidos\n1,Ana,Garcia\n2,Luis,Lopez\n")

	w := s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"employee-roster"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.RunStatusCompleted, decode[handler.RunResponse](t, w).Run.Status)

	s.write("Alta de empleados.csv", "Numero,Nombres\n1,Ana\n2,Luisa\n")
	w = s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"employee-roster"}`)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[handler.RunResponse](t, w).Run
	assert.Equal(t, domain.RunStatusPendingApproval, pending.Status)
	assert.Equal(t, domain.StringArray{"Apellidos"}, pending.RemovedColumns)

	w = s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"employee-roster","force":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/runs/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[handler.RunListResponse](t, w)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, pending.ID, list.Runs[0].ID)

	w = s.do(http.MethodPost, "/api/v1/runs/"+pending.ID+"/resume", "")
	assert.Equal(t, http.StatusConflict, w.Code, "pending runs cannot be resumed")

	w = s.do(http.MethodPost, "/api/v1/runs/"+pending.ID+"/approve", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/runs/"+pending.ID+"/approve", `{"resume":true}`, handler.ActorHeader, "admin1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[handler.RunResponse](t, w)
	assert.Empty(t, done.Error)
	assert.Equal(t, domain.RunStatusCompleted, done.Run.Status)
	assert.Equal(t, "admin1", done.Run.ApprovedBy)
	require.NotNil(t, done.Run.UpdatedCount)
	assert.Equal(t, 2, *done.Run.UpdatedCount)

	w = s.do(http.MethodPost, "/api/v1/runs/"+pending.ID+"/reject", `{"actor":"admin2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/runs?file_type=employee-roster&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[handler.RunListResponse](t, w).Count)

	w = s.do(http.MethodGet, "/api/v1/runs/"+pending.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/runs/"+pending.ID+"/errors", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/files/employee-roster/versions", "")
	require.Equal(t, http.StatusOK, w.Code)
	versions := decode[struct {
		Count int `json:"count"`
	}](t, w)
	assert.Equal(t, 2, versions.Count)
}

func TestReject(t *testing.T) {
	s := newTestServer(t)
	s.write("Motivos de baja.csv", "#,Fecha,Tipo,Motivo\n")

	w := s.do(http.MethodPost, "/api/v1/runs", `{"file_type":"termination-reasons"}`)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[handler.RunResponse](t, w).Run
	require.Equal(t, domain.RunStatusPendingApproval, run.Status)

	w = s.do(http.MethodPost, "/api/v1/runs/"+run.ID+"/reject", `{"actor":"admin1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	rejected := decode[handler.RunResponse](t, w).Run
	assert.Equal(t, domain.RunStatusRejected, rejected.Status)
	assert.Equal(t, "admin1", rejected.RejectedBy)
}

func TestRunNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/runs/missing", "/api/v1/runs/missing/errors"} {
		w := s.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := s.do(http.MethodPost, "/api/v1/runs/missing/approve", `{"actor":"admin1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedule(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.FrequencyManual, decode[domain.SyncSchedule](t, w).Frequency)

	w = s.do(http.MethodPut, "/api/v1/schedule", `{"frequency":"daily","run_time":"3:5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPut, "/api/v1/schedule", `{"frequency":"daily","run_time":"3:5","actor":"admin1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	sched := decode[domain.SyncSchedule](t, w)
	assert.Equal(t, domain.FrequencyDaily, sched.Frequency)
	assert.Equal(t, "03:05", sched.RunTime)
	assert.Equal(t, "admin1", sched.UpdatedBy)
	assert.NotNil(t, sched.NextRunAt)
}

func TestSyncNow(t *testing.T) {
	s := newTestServer(t)
	s.write("Alta de empleados.csv", "Numero,Nombres\n1,Ana\n")

	w := s.do(http.MethodPost, "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Outcomes []handler.SyncOutcomeResponse `json:"outcomes"`
		Summary  string                        `json:"summary"`
	}](t, w)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, domain.RunStatusCompleted, resp.Outcomes[0].Run.Status)
	assert.Equal(t, domain.RunStatusFailed, resp.Outcomes[1].Run.Status)
	assert.NotEmpty(t, resp.Outcomes[1].Error)
	assert.Contains(t, resp.Summary, "employee-roster: completed")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodOptions, "/api/v1/runs", "", "Origin", "https://admin.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSourceFiles(t *testing.T) {
	s := newTestServer(t)
	s.write("Validacion empleados.csv", "Numero,Nombres\n1,Ana\n")
	s.write("Motivos de baja.xlsx", "not really a workbook")
	s.write("notas.txt", "ignored by matching")

	w := s.do(http.MethodGet, "/api/v1/source/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode[service.SourceListing](t, w)
	assert.Equal(t, "staging:"+s.dir, listing.Adapter)
	assert.Len(t, listing.Files, 3)

	require.Len(t, listing.Matches, 3)
	byType := make(map[domain.FileType]service.FileMatch, len(listing.Matches))
	for _, m := range listing.Matches {
		byType[m.FileType] = m
	}
	require.NotNil(t, byType[domain.FileTypeEmployeeRoster].File)
	assert.Equal(t, "Validacion empleados.csv", byType[domain.FileTypeEmployeeRoster].File.Name)
	require.NotNil(t, byType[domain.FileTypeTerminationReasons].File)
	assert.Equal(t, "Motivos de baja.xlsx", byType[domain.FileTypeTerminationReasons].File.Name)
	assert.Nil(t, byType[domain.FileTypeAttendance].File)
	assert.NotEmpty(t, byType[domain.FileTypeAttendance].Error)
	assert.Equal(t, []string{"prenomina"}, byType[domain.FileTypeAttendance].Patterns)

	// Listing starts no run.
	w = s.do(http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[handler.RunListResponse](t, w).Count)
}

func TestSourceTest(t *testing.T) {
	s := newTestServer(t)
	s.write("Validacion empleados.csv", "Numero\n1\n")

	w := s.do(http.MethodPost, "/api/v1/source/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	check := decode[service.ConnectionCheck](t, w)
	assert.True(t, check.Reachable)
	assert.Equal(t, 1, check.FileCount)
	assert.Empty(t, check.Error)

	require.NoError(t, os.RemoveAll(s.dir))

	w = s.do(http.MethodPost, "/api/v1/source/test", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	check = decode[service.ConnectionCheck](t, w)
	assert.False(t, check.Reachable)
	assert.NotEmpty(t, check.Error)

	w = s.do(http.MethodGet, "/api/v1/source/files", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotEmpty(t, decode[handler.ErrorResponse](t, w).Error)
}

func TestNotifyTest(t *testing.T) {
	t.Run("no channel", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(http.MethodPost, "/api/v1/notify/test", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[handler.NotifyTestResponse](t, w)
		assert.False(t, resp.Configured)
		assert.Empty(t, resp.Channels)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("delivered", func(t *testing.T) {
		s := newTestServer(t, stubChannel{name: "webhook"})
		w := s.do(http.MethodPost, "/api/v1/notify/test", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[handler.NotifyTestResponse](t, w)
		assert.True(t, resp.Configured)
		assert.Equal(t, []notify.DeliveryResult{{Channel: "webhook", Delivered: true}}, resp.Channels)
	})

	t.Run("one channel fails", func(t *testing.T) {
		s := newTestServer(t, stubChannel{name: "webhook"}, stubChannel{name: "email", err: errors.New("dial tcp: connection refused")})
		w := s.do(http.MethodPost, "/api/v1/notify/test", "")
		require.Equal(t, http.StatusBadGateway, w.Code)
		resp := decode[handler.NotifyTestResponse](t, w)
		require.Len(t, resp.Channels, 2)
		assert.True(t, resp.Channels[0].Delivered)
		assert.False(t, resp.Channels[1].Delivered)
		assert.Equal(t, "dial tcp: connection refused", resp.Channels[1].Error)
	})
}
