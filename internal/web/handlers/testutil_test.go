package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

func init() {
	database.RetryDelay = time.Millisecond
}

// stubDetector returns the configured faces for every image
type stubDetector struct {
	faces []embedder.Face
	err   error
}

func (d *stubDetector) DetectAndEmbed(ctx context.Context, image []byte) ([]embedder.Face, error) {
	return d.faces, d.err
}

// testEnv bundles a service over mock stores
type testEnv struct {
	svc        *service.Service
	owners     *mock.MockOwnerStore
	attendance *mock.MockAttendanceStore
	detector   *stubDetector
}

// newTestEnv creates a service whose detector finds one face at (0.1, 0.2, 0.3)
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend, owners, attendance := mock.NewBackend()
	store := descriptor.NewStore("", 0, nil)
	matcher := facematch.NewMatcher(store, owners, facematch.Options{})
	clock := func() time.Time { return time.Date(2024, time.April, 15, 8, 5, 0, 0, time.UTC) }
	l := ledger.New(attendance, owners, ledger.WithClock(clock), ledger.WithLocation(time.UTC))
	detector := &stubDetector{faces: []embedder.Face{{Embedding: []float64{0.1, 0.2, 0.3}, BBox: []float64{4, 4, 28, 28}}}}

	return &testEnv{
		svc:        service.New(backend, store, matcher, l, detector, service.Options{}),
		owners:     owners,
		attendance: attendance,
		detector:   detector,
	}
}

// testDataURL returns a small PNG as a data URL
func testDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// rawRequest creates a request with a raw string body
func rawRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

var nopLogger = zap.NewNop()
