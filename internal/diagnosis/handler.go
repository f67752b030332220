package diagnosis

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"cattle-expert/internal/inference"
)

//go:embed ui/index.html
var indexHTML []byte

const errorInvalidRequest = "Permintaan tidak valid"

type Handler struct {
	svc     Service
	reports ReportService
	logger  *logrus.Logger
}

// NewHandler builds the HTTP handler. reports may be nil, in which case the
// report endpoint is not registered.
func NewHandler(svc Service, reports ReportService, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, reports: reports, logger: logger}
}

type errorDetail struct {
	Error   string   `json:"error"`
	Invalid []string `json:"invalid,omitempty"`
}

type errorResponse struct {
	Detail errorDetail `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail errorDetail) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (h *Handler) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Symptoms(r.Context()))
}

func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	q, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, q.Response)
}

func (h *Handler) DiagnoseReport(w http.ResponseWriter, r *http.Request) {
	q, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	notify, err := boolParam(r, "notify")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Error: err.Error()})
		return
	}

	report, err := h.reports.Generate(r.Context(), q)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate report")
		writeError(w, http.StatusInternalServerError, errorDetail{Error: "Gagal membuat laporan"})
		return
	}

	if notify {
		delivered := "true"
		if err := h.reports.Deliver(r.Context(), report); err != nil {
			delivered = "false"
			entry := h.logger.WithError(err).WithField("report_id", report.ID)
			if errors.Is(err, ErrDeliveryDisabled) {
				entry.Warn("Report delivery requested but not configured")
			} else {
				entry.Error("Failed to deliver report")
			}
		}
		w.Header().Set("X-Report-Delivered", delivered)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("X-Report-ID", report.ID.String())
	w.Write(report.PDF)
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// evaluate decodes the request, runs the diagnosis and writes any error
// response itself.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) (Query, bool) {
	strict, err := boolParam(r, "strict")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Error: err.Error()})
		return Query{}, false
	}
	ranked, err := boolParam(r, "ranked")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Error: err.Error()})
		return Query{}, false
	}

	var req DiagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorDetail{Error: errorInvalidRequest})
		return Query{}, false
	}

	resp, err := h.svc.Diagnose(r.Context(), req.Selected, strict)
	if err != nil {
		var unknown *UnknownSymptomsError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusUnprocessableEntity, errorDetail{
				Error:   ErrorUnknownSymptoms,
				Invalid: unknown.Invalid,
			})
			return Query{}, false
		}
		h.logger.WithError(err).Error("Diagnosis failed")
		writeError(w, http.StatusInternalServerError, errorDetail{Error: "Diagnosa gagal"})
		return Query{}, false
	}

	if ranked {
		resp.Diagnoses = inference.Rank(resp.Diagnoses)
	}
	return Query{
		Selected: inference.Normalize(req.Selected),
		Strict:   strict,
		Ranked:   ranked,
		Response: resp,
	}, true
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("query parameter %s must be a boolean", name)
	}
	return v, nil
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/symptoms", h.ListSymptoms)
	r.Post("/diagnose", h.Diagnose)
	if h.reports != nil {
		r.Post("/diagnose/report", h.DiagnoseReport)
	}
}
