package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/signintech/gopdf"

	"cattle-expert/internal/diagnosis"
)

const (
	fontFamily  = "DejaVu"
	marginLeft  = 40
	marginTop   = 40
	textWidth   = 515
	pageBottom  = 800
	lineSpacing = 4
)

// writer lays out text top to bottom. The first error sticks and turns
// later calls into no-ops.
type writer struct {
	pdf  *gopdf.GoPdf
	size float64
	err  error
}

func (w *writer) font(size float64) {
	if w.err != nil {
		return
	}
	w.size = size
	w.err = w.pdf.SetFont(fontFamily, "", size)
}

func (w *writer) line(text string) {
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		lines = []string{text}
	}
	for _, l := range lines {
		if w.pdf.GetY() > pageBottom {
			w.pdf.AddPage()
			w.pdf.SetY(marginTop)
		}
		w.pdf.SetX(marginLeft)
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(w.size + lineSpacing)
	}
}

func (w *writer) gap(h float64) {
	w.pdf.Br(h)
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	lastErr := fmt.Errorf("no font paths configured")
	for _, path := range s.fontPaths {
		err := pdf.AddTTFFont(fontFamily, path)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to load font for PDF, install ttf-dejavu or set report.font_paths: %w", lastErr)
}

func (s *Service) render(id uuid.UUID, created time.Time, q diagnosis.Query) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()
	pdf.SetY(marginTop)

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	names := s.kb.SymptomNames()
	w := &writer{pdf: &pdf}

	w.font(18)
	w.line("Laporan Diagnosa Penyakit Sapi")
	w.gap(10)

	w.font(11)
	w.line(fmt.Sprintf("ID Laporan: %s", id))
	w.line(fmt.Sprintf("Tanggal: %s", created.Format("02.01.2006 15:04")))
	w.line(fmt.Sprintf("Mode: %s", mode(q.Strict)))
	w.gap(10)

	w.font(14)
	w.line("Gejala yang diamati")
	w.font(11)
	if len(q.Selected) == 0 {
		w.line("- Tidak ada gejala dipilih.")
	}
	for _, code := range q.Selected {
		w.line(fmt.Sprintf("- %s %s", code, names[code]))
	}
	w.gap(10)

	w.font(14)
	w.line("Hasil diagnosa")
	w.font(11)
	if len(q.Response.Diagnoses) == 0 {
		w.line("- Tidak ada penyakit yang cocok.")
	}
	for _, d := range q.Response.Diagnoses {
		total := len(d.Matched) + len(d.Missing)
		w.line(fmt.Sprintf("%s %s: %s", d.Disease.Code, d.Disease.Name, status(d.Complete, len(d.Matched), total)))
		w.line("   Cocok: " + describe(d.Matched, names))
		if len(d.Missing) > 0 {
			w.line("   Belum terlihat: " + describe(d.Missing, names))
		}
	}

	if q.Response.Message != nil {
		w.gap(10)
		w.font(12)
		w.line("Kesimpulan: " + *q.Response.Message)
	}

	if w.err != nil {
		return nil, fmt.Errorf("failed to render report: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func mode(strict bool) string {
	if strict {
		return "ketat (hanya rule lengkap)"
	}
	return "sebagian (kandidat parsial ikut ditampilkan)"
}

func describe(codes []string, names map[string]string) string {
	if len(codes) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		if name, ok := names[c]; ok {
			parts = append(parts, fmt.Sprintf("%s (%s)", c, name))
		} else {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, ", ")
}
