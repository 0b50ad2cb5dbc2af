package timers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	"github.com/mark3748/sla-engine-go/internal/calendar"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/store"
)

func newTestApp(t *testing.T) *apppkg.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := engine.New(store.NewMemory(), nil, nil)
	days := []calendar.DayConfig{}
	for d := 1; d <= 5; d++ {
		days = append(days, calendar.DayConfig{DayOfWeek: d, IsEnabled: true, ScheduleType: "standard"})
	}
	if _, err := eng.PutCalendar(context.Background(), calendar.Config{
		WorkingTimeType:   "standard",
		StandardStartTime: "08:00",
		StandardEndTime:   "18:00",
		WorkingDays:       days,
	}); err != nil {
		t.Fatalf("PutCalendar: %v", err)
	}
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, eng, nil)
	a.R.POST("/timers", Create(a))
	a.R.GET("/timers/:id", Get(a))
	a.R.POST("/timers/:id/pause", Pause(a))
	a.R.POST("/timers/:id/resume", Resume(a))
	a.R.POST("/timers/:id/complete", Complete(a))
	a.R.POST("/timers/:id/cancel", Cancel(a))
	return a
}

func doJSON(t *testing.T, a *apppkg.App, method, url, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")
	a.R.ServeHTTP(rr, req)
	out := map[string]any{}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestCreateAndLifecycle(t *testing.T) {
	a := newTestApp(t)
	body := `{
	  "ticket_id": "HD-1",
	  "target": {"metric": "response", "duration": {"hours": 2}, "applies_calendar": true}
	}`
	rr, out := doJSON(t, a, http.MethodPost, "/timers", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("missing timer id: %v", out)
	}

	rr, out = doJSON(t, a, http.MethodGet, "/timers/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if out["state"] != "running" {
		t.Fatalf("state = %v, want running", out["state"])
	}
	if _, ok := out["due_at"]; !ok {
		t.Fatal("expected due_at for running timer")
	}

	rr, out = doJSON(t, a, http.MethodPost, "/timers/"+id+"/pause", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if out["state"] != "paused" {
		t.Fatalf("state = %v, want paused", out["state"])
	}
	if _, ok := out["due_at"]; ok {
		t.Fatal("due_at must be omitted while paused")
	}

	rr, _ = doJSON(t, a, http.MethodPost, "/timers/"+id+"/pause", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("double pause: expected 409, got %d", rr.Code)
	}

	rr, out = doJSON(t, a, http.MethodPost, "/timers/"+id+"/resume", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", rr.Code)
	}
	if out["state"] != "running" {
		t.Fatalf("state = %v, want running", out["state"])
	}

	rr, out = doJSON(t, a, http.MethodPost, "/timers/"+id+"/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", rr.Code)
	}
	if out["state"] != "met" && out["state"] != "breached" {
		t.Fatalf("state = %v, want a closed outcome", out["state"])
	}
}

func TestCancel(t *testing.T) {
	a := newTestApp(t)
	body := `{"ticket_id":"HD-2","target":{"metric":"resolution","duration":{"days":1},"applies_calendar":true}}`
	rr, out := doJSON(t, a, http.MethodPost, "/timers", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id := out["id"].(string)
	rr, out = doJSON(t, a, http.MethodPost, "/timers/"+id+"/cancel", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	if out["state"] != "canceled" {
		t.Fatalf("state = %v, want canceled", out["state"])
	}
}

func TestCreateValidation(t *testing.T) {
	a := newTestApp(t)
	rr, _ := doJSON(t, a, http.MethodPost, "/timers", `{"target":{"metric":"response"}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing ticket_id: expected 400, got %d", rr.Code)
	}
	rr, _ = doJSON(t, a, http.MethodPost, "/timers", `{"ticket_id":"HD-1","target":{"metric":"speed","duration":{"hours":1}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad metric: expected 400, got %d", rr.Code)
	}
	rr, _ = doJSON(t, a, http.MethodPost, "/timers", `{"ticket_id":"HD-1","target":{"metric":"response","applies_calendar":true}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty duration: expected 400, got %d", rr.Code)
	}
}

func TestUnknownTimer(t *testing.T) {
	a := newTestApp(t)
	rr, _ := doJSON(t, a, http.MethodGet, "/timers/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr, _ = doJSON(t, a, http.MethodPost, "/timers/nope/pause", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
