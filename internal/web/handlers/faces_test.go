package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedder"
)

func registerAlice(t *testing.T, env *testEnv) string {
	t.Helper()
	handler := NewFacesHandler(env.svc, nopLogger)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, jsonRequest(t, http.MethodPost, "/api/v1/register", RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Department: "Physics", Image: testDataURL(t),
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp RegisterResponse
	parseJSONResponse(t, recorder, &resp)
	return resp.UserID
}

func TestFacesHandler_Register_Success(t *testing.T) {
	env := newTestEnv(t)

	id := registerAlice(t, env)

	if id == "" {
		t.Error("expected user_id in response")
	}
	if env.owners.Len() != 1 {
		t.Errorf("expected 1 owner, got %d", env.owners.Len())
	}
}

func TestFacesHandler_Register_RoleAlias(t *testing.T) {
	env := newTestEnv(t)
	handler := NewFacesHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	handler.Register(recorder, jsonRequest(t, http.MethodPost, "/api/v1/register", RegisterRequest{
		Name: "Bob", Email: "bob@example.com", Role: "Chemistry", Image: testDataURL(t),
	}))

	assertStatusCode(t, recorder, http.StatusCreated)
	owners, _ := env.svc.ListOwners(t.Context(), "")
	if len(owners) != 1 || owners[0].Department != "Chemistry" {
		t.Errorf("expected role to be stored as department, got %+v", owners)
	}
}

func TestFacesHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, env *testEnv)
		body       func(t *testing.T) any
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing fields",
			body:       func(t *testing.T) any { return RegisterRequest{Name: "Alice", Image: testDataURL(t)} },
			wantStatus: http.StatusBadRequest,
			wantError:  "missing required fields",
		},
		{
			name: "bad image encoding",
			body: func(t *testing.T) any {
				return RegisterRequest{Name: "A", Email: "a@example.com", Department: "X", Image: "data:image/png;base64,%%%"}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "no face",
			setup: func(t *testing.T, env *testEnv) { env.detector.faces = nil },
			body: func(t *testing.T) any {
				return RegisterRequest{Name: "A", Email: "a@example.com", Department: "X", Image: testDataURL(t)}
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "no face detected",
		},
		{
			name: "duplicate",
			setup: func(t *testing.T, env *testEnv) {
				env.owners.AddOwner(database.Owner{ID: "u1", Name: "A", Email: "a@example.com", Department: "X"})
			},
			body: func(t *testing.T) any {
				return RegisterRequest{Name: "A", Email: "A@example.com", Department: "X", Image: testDataURL(t)}
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "storage down",
			setup: func(t *testing.T, env *testEnv) {
				env.owners.GetByEmailFail.Fail(errors.New("connection reset"), -1)
			},
			body: func(t *testing.T) any {
				return RegisterRequest{Name: "A", Email: "a@example.com", Department: "X", Image: testDataURL(t)}
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}
			handler := NewFacesHandler(env.svc, nopLogger)

			recorder := httptest.NewRecorder()
			handler.Register(recorder, jsonRequest(t, http.MethodPost, "/api/v1/register", tt.body(t)))

			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.wantError != "" {
				assertJSONError(t, recorder, tt.wantError)
			}
		})
	}
}

func TestFacesHandler_Register_InvalidJSON(t *testing.T) {
	handler := NewFacesHandler(newTestEnv(t).svc, nopLogger)
	recorder := httptest.NewRecorder()

	handler.Register(recorder, rawRequest(http.MethodPost, "/api/v1/register", "{not json"))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidRequestBody)
}

func TestFacesHandler_Recognize_Success(t *testing.T) {
	env := newTestEnv(t)
	id := registerAlice(t, env)
	handler := NewFacesHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, http.MethodPost, "/api/v1/recognize", RecognizeRequest{
		Image: testDataURL(t), Period: 1, Subject: "Physics",
	}))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["recognized"] != true {
		t.Errorf("expected recognized true, got %v", result["recognized"])
	}
	if result["attendance_id"] == "" || result["attendance_id"] == nil {
		t.Error("expected attendance_id")
	}
	user, ok := result["user"].(map[string]any)
	if !ok || user["id"] != id {
		t.Errorf("expected user %s, got %v", id, result["user"])
	}
	if result["date"] != "2024-04-15" {
		t.Errorf("expected date 2024-04-15, got %v", result["date"])
	}
}

func TestFacesHandler_Recognize_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(env *testEnv)
		wantReason string
	}{
		{
			name:       "no match",
			setup:      func(env *testEnv) { env.detector.faces = []embedder.Face{{Embedding: []float64{9, 9, 9}}} },
			wantReason: reasonNoMatch,
		},
		{
			name:       "no face",
			setup:      func(env *testEnv) { env.detector.faces = nil },
			wantReason: reasonNoFace,
		},
		{
			name:       "detector error",
			setup:      func(env *testEnv) { env.detector.err = errors.New("inference failed") },
			wantReason: reasonNoFace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			registerAlice(t, env)
			tt.setup(env)
			handler := NewFacesHandler(env.svc, nopLogger)

			recorder := httptest.NewRecorder()
			handler.Recognize(recorder, jsonRequest(t, http.MethodPost, "/api/v1/recognize", RecognizeRequest{
				Image: testDataURL(t), Period: 1, Subject: "Physics",
			}))

			assertStatusCode(t, recorder, http.StatusNotFound)
			var result RecognizeFailure
			parseJSONResponse(t, recorder, &result)
			if result.Recognized || result.Reason != tt.wantReason {
				t.Errorf("expected reason %s, got %+v", tt.wantReason, result)
			}
			if env.attendance.Len() != 0 {
				t.Errorf("expected no attendance, got %d", env.attendance.Len())
			}
		})
	}
}

func TestFacesHandler_Recognize_BadInput(t *testing.T) {
	env := newTestEnv(t)
	handler := NewFacesHandler(env.svc, nopLogger)

	tests := []struct {
		name string
		body RecognizeRequest
		want string
	}{
		{"no image", RecognizeRequest{Period: 1, Subject: "Physics"}, "no image provided"},
		{"bad period", RecognizeRequest{Image: testDataURL(t), Period: 6, Subject: "Physics"}, ""},
		{"no subject", RecognizeRequest{Image: testDataURL(t), Period: 1}, "missing required fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Recognize(recorder, jsonRequest(t, http.MethodPost, "/api/v1/recognize", tt.body))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			if tt.want != "" {
				assertJSONError(t, recorder, tt.want)
			}
		})
	}
}

func TestFacesHandler_AddFace(t *testing.T) {
	env := newTestEnv(t)
	id := registerAlice(t, env)
	handler := NewFacesHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/v1/owners/"+id+"/faces", AddFaceRequest{Image: testDataURL(t)})
	handler.AddFace(recorder, requestWithChiParams(req, map[string]string{"id": id}))

	assertStatusCode(t, recorder, http.StatusCreated)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["descriptors"] != float64(2) {
		t.Errorf("expected 2 descriptors, got %v", result["descriptors"])
	}

	recorder = httptest.NewRecorder()
	req = jsonRequest(t, http.MethodPost, "/api/v1/owners/nobody/faces", AddFaceRequest{Image: testDataURL(t)})
	handler.AddFace(recorder, requestWithChiParams(req, map[string]string{"id": "nobody"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}
