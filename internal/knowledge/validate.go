package knowledge

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrInvalid wraps every load-time validation failure.
	ErrInvalid = errors.New("invalid knowledge base")
	// ErrEmpty is returned by sources that hold no knowledge base at all.
	ErrEmpty = errors.New("knowledge base is empty")
)

// Validate reports every structural problem of kb at once. A knowledge base
// that fails validation must not be served.
func Validate(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("%w: nil knowledge base", ErrInvalid)
	}

	var result *multierror.Error

	symptoms := make(map[string]struct{}, len(kb.Symptoms))
	for i, s := range kb.Symptoms {
		if err := checkCode(s.Code); err != nil {
			result = multierror.Append(result, fmt.Errorf("symptom #%d: %w", i+1, err))
		}
		if s.Name == "" {
			result = multierror.Append(result, fmt.Errorf("symptom %q: empty name", s.Code))
		}
		if _, dup := symptoms[s.Code]; dup {
			result = multierror.Append(result, fmt.Errorf("symptom %q: duplicate code", s.Code))
		}
		symptoms[s.Code] = struct{}{}
	}

	diseases := make(map[string]struct{}, len(kb.Diseases))
	for i, d := range kb.Diseases {
		if err := checkCode(d.Code); err != nil {
			result = multierror.Append(result, fmt.Errorf("disease #%d: %w", i+1, err))
		}
		if d.Name == "" {
			result = multierror.Append(result, fmt.Errorf("disease %q: empty name", d.Code))
		}
		if _, dup := diseases[d.Code]; dup {
			result = multierror.Append(result, fmt.Errorf("disease %q: duplicate code", d.Code))
		}
		diseases[d.Code] = struct{}{}

		if len(d.Symptoms) == 0 {
			result = multierror.Append(result, fmt.Errorf("disease %q: empty rule", d.Code))
		}
		for _, code := range d.RequiredSymptoms() {
			if err := checkCode(code); err != nil {
				result = multierror.Append(result, fmt.Errorf("disease %q: rule symptom: %w", d.Code, err))
				continue
			}
			if _, ok := symptoms[code]; !ok {
				result = multierror.Append(result, fmt.Errorf("disease %q: rule references unknown symptom %q", d.Code, code))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func checkCode(code string) error {
	if code == "" {
		return errors.New("empty code")
	}
	if CanonicalCode(code) != code {
		return fmt.Errorf("code %q is not canonical (want %q)", code, CanonicalCode(code))
	}
	return nil
}
