package diagnosis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cattle-expert/internal/inference"
)

// ErrorUnknownSymptoms is the user-facing error text for rejected codes.
const ErrorUnknownSymptoms = "Kode gejala tidak dikenal"

// ErrDeliveryDisabled is returned by report services without a delivery target.
var ErrDeliveryDisabled = errors.New("report delivery is not configured")

// UnknownSymptomsError lists submitted codes missing from the catalog.
type UnknownSymptomsError struct {
	Invalid []string
}

func (e *UnknownSymptomsError) Error() string {
	return fmt.Sprintf("unknown symptom codes: %s", strings.Join(e.Invalid, ", "))
}

// DiagnoseRequest is the body of the diagnose endpoints.
type DiagnoseRequest struct {
	Selected []string `json:"selected"`
}

// Query is a normalized diagnose request with its evaluation.
type Query struct {
	Selected []string
	Strict   bool
	Ranked   bool
	Response inference.Response
}

// Report is a rendered diagnosis document.
type Report struct {
	ID       uuid.UUID
	FileName string
	Summary  string
	PDF      []byte
}
