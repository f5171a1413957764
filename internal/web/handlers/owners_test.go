package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestOwnersHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.owners.AddOwner(database.Owner{ID: "u1", Name: "Alice", Email: "a@example.com", Department: "Physics"})
	env.owners.AddOwner(database.Owner{ID: "u2", Name: "Bob", Email: "b@example.com", Department: "Chemistry"})
	handler := NewOwnersHandler(env.svc, nopLogger)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 2},
		{"all keyword", "?department=all", 2},
		{"filtered", "?department=physics", 1},
		{"unknown department", "?department=history", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users"+tt.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result struct {
				Users []database.Owner `json:"users"`
			}
			parseJSONResponse(t, recorder, &result)
			if len(result.Users) != tt.want {
				t.Errorf("expected %d users, got %d", tt.want, len(result.Users))
			}
		})
	}
}

func TestOwnersHandler_List_EmptyIsArray(t *testing.T) {
	handler := NewOwnersHandler(newTestEnv(t).svc, nopLogger)
	recorder := httptest.NewRecorder()

	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	if got := recorder.Body.String(); got != "{\"users\":[]}\n" {
		t.Errorf("expected empty users array, got %s", got)
	}
}

func TestOwnersHandler_List_StorageDown(t *testing.T) {
	env := newTestEnv(t)
	env.owners.ListOwnersFail.Fail(errors.New("no reachable servers"), -1)
	handler := NewOwnersHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestOwnersHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.owners.AddOwner(database.Owner{ID: "u1", Name: "Alice", Email: "a@example.com", Department: "Physics"})
	handler := NewOwnersHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/owners/u1", nil), map[string]string{"id": "u1"})
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNoContent)

	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestOwnersHandler_Departments(t *testing.T) {
	env := newTestEnv(t)
	registerAlice(t, env)
	handler := NewOwnersHandler(env.svc, nopLogger)

	recorder := httptest.NewRecorder()
	handler.Departments(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/departments", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result struct {
		Departments []string `json:"departments"`
	}
	parseJSONResponse(t, recorder, &result)
	if len(result.Departments) != 1 || result.Departments[0] != "Physics" {
		t.Errorf("expected [Physics], got %v", result.Departments)
	}
}
