package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cattle-expert/internal/inference"
)

type fakeReports struct {
	generated  []Query
	delivered  int
	deliverErr error
}

func (f *fakeReports) Generate(ctx context.Context, q Query) (*Report, error) {
	f.generated = append(f.generated, q)
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	return &Report{ID: id, FileName: "laporan_" + id.String() + ".pdf", PDF: []byte("%PDF-1.4 fake")}, nil
}

func (f *fakeReports) Deliver(ctx context.Context, r *Report) error {
	f.delivered++
	return f.deliverErr
}

func newTestRouter(t *testing.T, reports ReportService) http.Handler {
	t.Helper()
	h := NewHandler(newTestService(t, 8), reports, testLogger())
	r := chi.NewRouter()
	r.Get("/", h.Home)
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, h)
	})
	return r
}

func post(t *testing.T, router http.Handler, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_DiagnoseFullMatch(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(t, router, "/api/diagnose?strict=true", `{"selected":["JG01","JG02","JG03","JG04"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "message")
	assert.Nil(t, body["message"])

	diagnoses := body["diagnoses"].([]any)
	require.Len(t, diagnoses, 1)
	first := diagnoses[0].(map[string]any)
	assert.Equal(t, "P1", first["disease"].(map[string]any)["code"])
	assert.Equal(t, []any{}, first["missing"])
	assert.Equal(t, true, first["complete"])
}

func TestHandler_DiagnoseUnknownCode(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(t, router, "/api/diagnose", `{"selected":["UNKNOWN"]}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorUnknownSymptoms, body.Detail.Error)
	assert.Equal(t, []string{"UNKNOWN"}, body.Detail.Invalid)
}

func TestHandler_DiagnosePartialMode(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(t, router, "/api/diagnose", `{"selected":["JG01"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body inference.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Diagnoses)
	require.NotNil(t, body.Message)
	assert.Equal(t, inference.MessageUnresolved, *body.Message)

	anyMissing := false
	for _, d := range body.Diagnoses {
		anyMissing = anyMissing || len(d.Missing) > 0
	}
	assert.True(t, anyMissing)
}

func TestHandler_DiagnoseRanked(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(t, router, "/api/diagnose?ranked=true", `{"selected":["JG15","JG17","JG18","JG01"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body inference.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Diagnoses)
	assert.Equal(t, "P4", body.Diagnoses[0].Disease.Code)
	assert.True(t, body.Diagnoses[0].Complete)
	assert.Nil(t, body.Message)
}

func TestHandler_BadRequests(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"malformed json", "/api/diagnose", `{"selected":`},
		{"empty body", "/api/diagnose", ``},
		{"wrong type", "/api/diagnose", `{"selected":[1,2]}`},
		{"bad strict", "/api/diagnose?strict=maybe", `{"selected":[]}`},
		{"bad ranked", "/api/diagnose?ranked=2", `{"selected":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_ListSymptoms(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/symptoms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var symptoms []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &symptoms))
	assert.Len(t, symptoms, 27)
	assert.Equal(t, map[string]string{"code": "JG01", "name": "Demam tinggi"}, symptoms[0])
}

func TestHandler_Home(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/diagnose")
}

func TestHandler_ReportRouteRequiresService(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(t, router, "/api/diagnose/report", `{"selected":["JG01"]}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DiagnoseReport(t *testing.T) {
	reports := &fakeReports{}
	router := newTestRouter(t, reports)

	rec := post(t, router, "/api/diagnose/report?strict=false&ranked=true", `{"selected":["jg01","JG02"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "laporan_11111111-2222-3333-4444-555555555555.pdf")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", rec.Header().Get("X-Report-ID"))
	assert.Empty(t, rec.Header().Get("X-Report-Delivered"))
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	require.Len(t, reports.generated, 1)
	q := reports.generated[0]
	assert.Equal(t, []string{"JG01", "JG02"}, q.Selected)
	assert.True(t, q.Ranked)
	assert.False(t, q.Strict)
	assert.Zero(t, reports.delivered)
}

func TestHandler_DiagnoseReportNotify(t *testing.T) {
	reports := &fakeReports{}
	router := newTestRouter(t, reports)

	rec := post(t, router, "/api/diagnose/report?notify=true", `{"selected":["JG01"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Report-Delivered"))

	reports.deliverErr = ErrDeliveryDisabled
	rec = post(t, router, "/api/diagnose/report?notify=true", `{"selected":["JG01"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get("X-Report-Delivered"))

	reports.deliverErr = errors.New("telegram down")
	rec = post(t, router, "/api/diagnose/report?notify=true", `{"selected":["JG01"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get("X-Report-Delivered"))
	assert.Equal(t, 3, reports.delivered)
}

func TestHandler_DiagnoseReportUnknownCode(t *testing.T) {
	reports := &fakeReports{}
	router := newTestRouter(t, reports)

	rec := post(t, router, "/api/diagnose/report", `{"selected":["XX"]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, reports.generated)
}
