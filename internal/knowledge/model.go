package knowledge

import "strings"

// Symptom is an observable sign a user can select.
type Symptom struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Disease is a rule: every listed symptom code is required for a complete match.
type Disease struct {
	Code     string   `json:"code" yaml:"code"`
	Name     string   `json:"name" yaml:"name"`
	Symptoms []string `json:"symptoms" yaml:"symptoms"`
}

// RequiredSymptoms returns the rule's codes with duplicates collapsed,
// keeping first-seen order.
func (d Disease) RequiredSymptoms() []string {
	seen := make(map[string]struct{}, len(d.Symptoms))
	required := make([]string, 0, len(d.Symptoms))
	for _, code := range d.Symptoms {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		required = append(required, code)
	}
	return required
}

// KnowledgeBase is loaded once and never mutated afterwards.
type KnowledgeBase struct {
	Symptoms []Symptom `json:"symptoms" yaml:"symptoms"`
	Diseases []Disease `json:"diseases" yaml:"diseases"`
}

// SymptomCodes returns the set of catalog codes.
func (kb *KnowledgeBase) SymptomCodes() map[string]struct{} {
	codes := make(map[string]struct{}, len(kb.Symptoms))
	for _, s := range kb.Symptoms {
		codes[s.Code] = struct{}{}
	}
	return codes
}

// SymptomNames maps catalog codes to display names.
func (kb *KnowledgeBase) SymptomNames() map[string]string {
	names := make(map[string]string, len(kb.Symptoms))
	for _, s := range kb.Symptoms {
		names[s.Code] = s.Name
	}
	return names
}

// CanonicalCode trims whitespace and upper-cases a symptom code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
