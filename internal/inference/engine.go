// Package inference implements the forward-chaining rule matcher: each
// disease rule is checked against the observed symptom codes and reported as
// complete or partial, with the matched and missing codes spelled out.
//
// Evaluation is pure. An Evaluator never mutates its knowledge base and may
// be shared by any number of goroutines.
package inference

import (
	"sort"

	"cattle-expert/internal/knowledge"
)

// MessageUnresolved is reported when no returned diagnosis is complete.
const MessageUnresolved = "Tidak diketahui"

// DiagnosisResult is the evaluation of one disease rule against a query.
type DiagnosisResult struct {
	Disease  knowledge.Disease `json:"disease"`
	Matched  []string          `json:"matched"`
	Missing  []string          `json:"missing"`
	Complete bool              `json:"complete"`
}

// Ratio is the share of required symptoms that were observed.
func (r DiagnosisResult) Ratio() float64 {
	total := len(r.Matched) + len(r.Missing)
	if total == 0 {
		return 0
	}
	return float64(len(r.Matched)) / float64(total)
}

// Response is the outcome of one Diagnose call.
type Response struct {
	Diagnoses []DiagnosisResult `json:"diagnoses"`
	Message   *string           `json:"message"`
}

// Resolved reports whether at least one diagnosis is complete.
func (r Response) Resolved() bool {
	return r.Message == nil
}

type Evaluator struct {
	kb *knowledge.KnowledgeBase
}

func New(kb *knowledge.KnowledgeBase) *Evaluator {
	return &Evaluator{kb: kb}
}

// Diagnose evaluates every disease against selected. In strict mode only
// complete matches are kept; otherwise any disease with at least one matched
// symptom is kept. Results follow the knowledge base's disease order.
func (e *Evaluator) Diagnose(selected []string, strict bool) Response {
	set := make(map[string]struct{}, len(selected))
	for _, code := range Normalize(selected) {
		set[code] = struct{}{}
	}

	diagnoses := make([]DiagnosisResult, 0)
	resolved := false
	for _, disease := range e.kb.Diseases {
		result := Evaluate(disease, set)
		if strict && !result.Complete {
			continue
		}
		if len(result.Matched) == 0 {
			continue
		}
		resolved = resolved || result.Complete
		diagnoses = append(diagnoses, result)
	}

	resp := Response{Diagnoses: diagnoses}
	if !resolved {
		msg := MessageUnresolved
		resp.Message = &msg
	}
	return resp
}

// Evaluate partitions the disease rule into observed and missing codes.
func Evaluate(disease knowledge.Disease, selected map[string]struct{}) DiagnosisResult {
	matched := []string{}
	missing := []string{}
	for _, code := range disease.RequiredSymptoms() {
		if _, ok := selected[code]; ok {
			matched = append(matched, code)
		} else {
			missing = append(missing, code)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)

	return DiagnosisResult{
		Disease:  disease,
		Matched:  matched,
		Missing:  missing,
		Complete: len(missing) == 0,
	}
}

// Normalize trims and upper-cases codes, dropping empties and duplicates.
// First-seen order is kept.
func Normalize(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = knowledge.CanonicalCode(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
