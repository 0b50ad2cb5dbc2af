package calendars

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/store"
)

func newTestApp(t *testing.T) *apppkg.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := engine.New(store.NewMemory(), nil, nil)
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, eng, nil)
	a.R.GET("/calendar", Get(a))
	a.R.PUT("/calendar", Put(a))
	return a
}

const validBody = `{
  "workingTimeType": "standard",
  "standardStartTime": "08:00",
  "standardEndTime": "18:00",
  "standardBreakStart": "12:00",
  "standardBreakEnd": "13:00",
  "workingDays": [
    {"dayOfWeek": 1, "isEnabled": true, "scheduleType": "standard"},
    {"dayOfWeek": 2, "isEnabled": true, "scheduleType": "standard"},
    {"dayOfWeek": 3, "isEnabled": true, "scheduleType": "standard"},
    {"dayOfWeek": 4, "isEnabled": true, "scheduleType": "standard"},
    {"dayOfWeek": 5, "isEnabled": true, "scheduleType": "standard"}
  ]
}`

func TestGetWithoutCalendar(t *testing.T) {
	a := newTestApp(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPutThenGet(t *testing.T) {
	a := newTestApp(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/calendar", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["version"].(float64) != 1 {
		t.Fatalf("expected version 1, got %v", out["version"])
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/calendar", nil)
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["mode"].(string) != "standard" {
		t.Fatalf("unexpected mode: %v", out["mode"])
	}
}

func TestPutRejectsInvalidConfig(t *testing.T) {
	a := newTestApp(t)
	body := `{"workingTimeType":"standard","standardStartTime":"18:00","standardEndTime":"08:00","workingDays":[]}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/calendar", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var out map[string]map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["errors"]["standardHours"]; !ok {
		t.Fatalf("expected standardHours field error, got %v", out)
	}
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	a := newTestApp(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/calendar", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	a.R.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
