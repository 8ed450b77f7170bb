package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/opsdeck/opsdeck/internal/alerting"
	api "github.com/opsdeck/opsdeck/internal/api/v2"
	"github.com/opsdeck/opsdeck/internal/command"
	"github.com/opsdeck/opsdeck/internal/datastore"
	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
)

type testServer struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, datastore.Migrate(db))

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	alerts := repository.NewAlertRepository(db)
	commands := repository.NewCommandRepository(db)
	templates := repository.NewTemplateRepository(db)
	activity := repository.NewActivityRepository(db)
	sources := repository.NewSourceReader(db)

	evaluator := alerting.NewEvaluator(sources, 0)
	engine := alerting.NewEngine(alerts, evaluator, nil, log, 2)
	resolver := alerting.NewResolver(alerts, activity, log)
	matcher := command.NewMatcher(commands, activity, nil, log, time.Minute)

	e := echo.New()
	api.New(e, alerts, commands, templates, engine, resolver, matcher, log)

	return &testServer{e: e, db: db}
}

func (s *testServer) request(method, path string, body any, actorID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actorID != "" {
		req.Header.Set("X-Actor-Id", actorID)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestAlertConditionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPost, "/api/v2/alerts/conditions", map[string]any{
		"name":            "high cpu temp",
		"source_table":    "system_metrics",
		"field_name":      "cpu_temp",
		"comparator":      ">",
		"threshold_value": "80",
		"active":          true,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cond entities.AlertCondition
	decode(t, rec, &cond)
	require.NotZero(t, cond.ID)

	// Rejects nonsense inputs.
	rec = s.request(http.MethodPost, "/api/v2/alerts/conditions", map[string]any{
		"name":            "bad",
		"source_table":    "nope",
		"comparator":      ">",
		"threshold_value": "1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A breaching metric makes the run create an event.
	require.NoError(t, s.db.Create(&entities.SystemMetric{
		Timestamp:  time.Now().Add(-time.Minute),
		SensorName: "cpu_temp",
		Value:      91,
	}).Error)

	rec = s.request(http.MethodPost, "/api/v2/alerts/run", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var runResp struct {
		Evaluated int `json:"evaluated"`
		Triggered int `json:"triggered"`
	}
	decode(t, rec, &runResp)
	assert.Equal(t, 1, runResp.Evaluated)
	assert.Equal(t, 1, runResp.Triggered)

	rec = s.request(http.MethodGet, "/api/v2/alerts/events", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var eventsResp struct {
		Events []entities.AlertEvent `json:"events"`
		Total  int64                 `json:"total"`
	}
	decode(t, rec, &eventsResp)
	require.EqualValues(t, 1, eventsResp.Total)
	eventID := eventsResp.Events[0].ID

	// Resolution needs an actor.
	rec = s.request(http.MethodPost, fmt.Sprintf("/api/v2/alerts/events/%d/resolve", eventID),
		map[string]any{"notes": "rebooted"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodPost, fmt.Sprintf("/api/v2/alerts/events/%d/resolve", eventID),
		map[string]any{"notes": "rebooted"}, "7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved entities.AlertEvent
	decode(t, rec, &resolved)
	assert.True(t, resolved.Resolved)
	assert.Contains(t, resolved.Notes, "Resolution notes: rebooted")
}

func TestCommandCheckAndAddressFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPost, "/api/v2/commands/groups", map[string]any{
		"name": "destructive",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var group entities.CommandGroup
	decode(t, rec, &group)

	rec = s.request(http.MethodPost, "/api/v2/commands/rules", map[string]any{
		"name":     "rm usage",
		"group_id": group.ID,
		"patterns": []map[string]any{{"pattern": "rm -rf"}},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.request(http.MethodPost, "/api/v2/commands/check", map[string]any{
		"logs": []map[string]any{
			{"id": 1, "source": "system", "entry": "bash rm -rf /tmp/x"},
			{"id": 2, "source": "system", "entry": "ls -la"},
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var checkResp struct {
		Matches []entities.CommandMatch `json:"matches"`
		Count   int                     `json:"count"`
		Checked int                     `json:"checked"`
	}
	decode(t, rec, &checkResp)
	assert.Equal(t, 2, checkResp.Checked)
	require.Equal(t, 1, checkResp.Count)

	rec = s.request(http.MethodGet, "/api/v2/commands/matches/unaddressed-count", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var countResp struct {
		Count int64 `json:"count"`
	}
	decode(t, rec, &countResp)
	assert.EqualValues(t, 1, countResp.Count)

	// Address-all without identity is rejected.
	rec = s.request(http.MethodPost, "/api/v2/commands/matches/address-all", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodPost, "/api/v2/commands/matches/address-all", nil, "3")
	require.Equal(t, http.StatusOK, rec.Code)
	var bulkResp struct {
		Addressed int64 `json:"addressed"`
	}
	decode(t, rec, &bulkResp)
	assert.EqualValues(t, 1, bulkResp.Addressed)
}

func TestTemplateEndpoints(t *testing.T) {
	s := newTestServer(t)

	users := []entities.User{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@example.com"},
	}
	require.NoError(t, s.db.Create(&users).Error)

	rec := s.request(http.MethodPost, "/api/v2/templates", map[string]any{
		"name":    "alert email",
		"subject": "Alert: {{alertName}}",
		"body":    "<p>Hello {{username}}</p>",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl entities.NotificationTemplate
	decode(t, rec, &tmpl)

	rec = s.request(http.MethodPost, fmt.Sprintf("/api/v2/templates/%d/recipients", tmpl.ID),
		map[string]any{"user_ids": []uint{users[0].ID}}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var withRecipients entities.NotificationTemplate
	decode(t, rec, &withRecipients)
	require.Len(t, withRecipients.Recipients, 1)
	assert.Equal(t, "alice", withRecipients.Recipients[0].Username)

	rec = s.request(http.MethodGet, "/api/v2/templates/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
