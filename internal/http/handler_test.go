package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"eagleeye/internal/config"
	httpapi "eagleeye/internal/http"
	"eagleeye/internal/repository"
	"eagleeye/internal/rules"
	"eagleeye/internal/service"
)

type fakeStore struct {
	vehicles map[string]*repository.Vehicle
	deleted  int64
	listErr  error
}

func (f *fakeStore) FindVehicleByPlate(_ context.Context, plate string) (*repository.Vehicle, error) {
	return f.vehicles[plate], nil
}

func (f *fakeStore) UpsertVehicle(_ context.Context, v *repository.Vehicle) error {
	if f.vehicles == nil {
		f.vehicles = make(map[string]*repository.Vehicle)
	}
	v.ID = int64(len(f.vehicles) + 1)
	f.vehicles[v.PlateNumber] = v
	return nil
}

func (f *fakeStore) CreateDetection(context.Context, *repository.Detection) error { return nil }
func (f *fakeStore) CreateGateEvent(context.Context, *repository.GateEvent) error { return nil }

func (f *fakeStore) ListDetections(context.Context, int, int) ([]repository.Detection, error) {
	return nil, f.listErr
}

func (f *fakeStore) ListGateEvents(context.Context, string, int, int) ([]repository.GateEvent, error) {
	return nil, nil
}

func (f *fakeStore) ListAlertsSince(context.Context, time.Time, int) ([]repository.Alert, error) {
	return nil, nil
}

func (f *fakeStore) DeleteOldDetections(context.Context, int) (int64, error) {
	return f.deleted, nil
}

func newTestRouter(t *testing.T, store service.Store, table *rules.Table) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	gate := service.NewGateService(nil, rules.NewEngine(table, log), store, log)
	handler := httpapi.NewHandler(gate, &config.Config{}, log)

	r := gin.New()
	handler.Register(r, func(c *gin.Context) { c.Next() })
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestValidateEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeStore{}, nil)

	w, out := doJSON(t, r, http.MethodPost, "/api/v1/validate", `{"plate_text":"mh 12-ab1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	data, _ := out["data"].(map[string]any)
	if data["is_valid"] != true {
		t.Fatalf("expected a valid plate, got %v", out)
	}
	if data["normalized_text"] != "MH12AB1234" {
		t.Fatalf("expected normalized MH12AB1234 got %v", data["normalized_text"])
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/validate", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing plate_text got %d", w.Code)
	}
}

func TestDecideEndpoint(t *testing.T) {
	table := rules.NewTable([]string{"MH12AB1234"}, nil)
	r := newTestRouter(t, &fakeStore{}, table)

	w, out := doJSON(t, r, http.MethodPost, "/api/v1/decide", `{"plate_text":"MH12AB1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	decision, _ := out["decision"].(map[string]any)
	if decision["action"] != "ALERT" || decision["rule_name"] != "blacklisted_vehicle" {
		t.Fatalf("expected blacklist alert, got %v", out)
	}

	_, out = doJSON(t, r, http.MethodPost, "/api/v1/decide", `{"plate_text":"TN09GH3456"}`)
	decision, _ = out["decision"].(map[string]any)
	if decision["action"] != "ALLOW" {
		t.Fatalf("expected ALLOW for unlisted plate, got %v", out)
	}
}

func TestVehicleLifecycle(t *testing.T) {
	r := newTestRouter(t, &fakeStore{}, nil)

	w, out := doJSON(t, r, http.MethodPost, "/api/v1/vehicles", `{"plate_number":"ka 01-ab1234"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	data, _ := out["data"].(map[string]any)
	if data["plate_number"] != "KA01AB1234" {
		t.Fatalf("expected normalized plate KA01AB1234 got %v", data["plate_number"])
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/vehicles/KA01AB1234", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/vehicles/MH99ZZ9999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown vehicle got %d", w.Code)
	}
}

func TestListEventsRejectsUnknownType(t *testing.T) {
	r := newTestRouter(t, &fakeStore{}, nil)

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/events?event_type=BOGUS", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/events?event_type=ALERT", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
}

func TestListDetectionsStoreFailureMapsTo500(t *testing.T) {
	r := newTestRouter(t, &fakeStore{listErr: errors.New("boom")}, nil)

	w, out := doJSON(t, r, http.MethodGet, "/api/v1/detections", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", w.Code)
	}
	if out["error"] != "internal error" {
		t.Fatalf("expected opaque error body, got %v", out)
	}
}

func TestPurgeDetections(t *testing.T) {
	r := newTestRouter(t, &fakeStore{deleted: 4}, nil)

	w, out := doJSON(t, r, http.MethodDelete, "/api/v1/detections?days=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	data, _ := out["data"].(map[string]any)
	if data["deleted"] != float64(4) {
		t.Fatalf("expected 4 deleted got %v", out)
	}

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/detections?days=0", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-positive retention got %d", w.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "topsecret"

	r := gin.New()
	r.GET("/secure", httpapi.JWTAuth(secret, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token got %d", w.Code)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token got %d: %s", w.Code, w.Body.String())
	}

	unconfigured := gin.New()
	unconfigured.GET("/secure", httpapi.JWTAuth("", zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w = httptest.NewRecorder()
	unconfigured.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no secret configured got %d", w.Code)
	}
}
