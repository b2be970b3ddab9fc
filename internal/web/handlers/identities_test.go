package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func seedGallery(t *testing.T) (*facematch.Matcher, func()) {
	t.Helper()
	gallery, _ := setupMockBackend(t)
	gallery.AddIdentity(database.Identity{ID: 1, DisplayName: "Jan Novák", Designation: "Engineer", Template: testTemplate(0.1)})
	gallery.AddIdentity(database.Identity{ID: 2, DisplayName: "Eva Svobodová", Template: testTemplate(0.2)})
	matcher := facematch.NewMatcher(100)
	matcher.Load([]database.Identity{
		{ID: 1, Template: testTemplate(0.1)},
		{ID: 2, Template: testTemplate(0.2)},
	})
	return matcher, func() { gallery.AllError = errors.New("connection refused") }
}

func TestIdentitiesHandler_List(t *testing.T) {
	matcher, _ := seedGallery(t)
	handler := NewIdentitiesHandler(matcher)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/identities", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var identities []IdentityResponse
	parseJSONResponse(t, recorder, &identities)
	if len(identities) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(identities))
	}
	if identities[0].DisplayName != "Jan Novák" || identities[0].Designation != "Engineer" {
		t.Errorf("unexpected first identity %+v", identities[0])
	}
	if strings.Contains(recorder.Body.String(), "template") {
		t.Error("response must not include templates")
	}
}

func TestIdentitiesHandler_ListByName(t *testing.T) {
	matcher, _ := seedGallery(t)
	handler := NewIdentitiesHandler(matcher)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/identities?name=jan-novak", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var identities []IdentityResponse
	parseJSONResponse(t, recorder, &identities)
	if len(identities) != 1 || identities[0].ID != 1 {
		t.Errorf("expected only identity 1, got %+v", identities)
	}
}

func TestIdentitiesHandler_ListStorageError(t *testing.T) {
	matcher, breakGallery := seedGallery(t)
	breakGallery()
	handler := NewIdentitiesHandler(matcher)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/identities", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list identities")
}

func TestIdentitiesHandler_NoBackend(t *testing.T) {
	database.ResetBackend()
	handler := NewIdentitiesHandler(nil)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/identities", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestIdentitiesHandler_Get(t *testing.T) {
	matcher, _ := seedGallery(t)
	handler := NewIdentitiesHandler(matcher)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "existing", id: "2", want: http.StatusOK},
		{name: "missing", id: "99", want: http.StatusNotFound},
		{name: "not a number", id: "abc", want: http.StatusBadRequest},
		{name: "zero", id: "0", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/identities/"+tt.id, nil), map[string]string{"id": tt.id})
			recorder := httptest.NewRecorder()
			handler.Get(recorder, req)
			assertStatusCode(t, recorder, tt.want)
		})
	}
}

func TestIdentitiesHandler_DeleteReloadsMatcher(t *testing.T) {
	matcher, _ := seedGallery(t)
	handler := NewIdentitiesHandler(matcher)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/identities/1", nil), map[string]string{"id": "1"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNoContent)
	if matcher.Size() != 1 {
		t.Errorf("expected matcher to hold 1 identity after delete, got %d", matcher.Size())
	}

	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
