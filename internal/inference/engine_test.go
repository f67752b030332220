package inference

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cattle-expert/data"
	"cattle-expert/internal/knowledge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadDefault(t *testing.T) *knowledge.KnowledgeBase {
	t.Helper()
	kb, err := knowledge.BytesSource{Data: data.Default, Format: knowledge.FormatJSON}.Load(context.Background())
	require.NoError(t, err)
	return kb
}

func codes(resp Response) []string {
	out := make([]string, 0, len(resp.Diagnoses))
	for _, d := range resp.Diagnoses {
		out = append(out, d.Disease.Code)
	}
	return out
}

func TestDiagnose_FullMatchStrict(t *testing.T) {
	e := New(loadDefault(t))

	resp := e.Diagnose([]string{"JG01", "JG02", "JG03", "JG04"}, true)

	require.Len(t, resp.Diagnoses, 1)
	anthrax := resp.Diagnoses[0]
	assert.Equal(t, "P1", anthrax.Disease.Code)
	assert.True(t, anthrax.Complete)
	assert.Empty(t, anthrax.Missing)
	assert.NotNil(t, anthrax.Missing)
	assert.Equal(t, []string{"JG01", "JG02", "JG03", "JG04"}, anthrax.Matched)
	assert.Nil(t, resp.Message)
	assert.True(t, resp.Resolved())
}

func TestDiagnose_PartialMatchNonStrict(t *testing.T) {
	e := New(loadDefault(t))

	resp := e.Diagnose([]string{"JG01"}, false)

	require.NotEmpty(t, resp.Diagnoses)
	for _, d := range resp.Diagnoses {
		assert.Equal(t, []string{"JG01"}, d.Matched)
		assert.False(t, d.Complete)
	}
	assert.Equal(t, "P1", resp.Diagnoses[0].Disease.Code)
	assert.Equal(t, []string{"JG02", "JG03", "JG04"}, resp.Diagnoses[0].Missing)
	require.NotNil(t, resp.Message)
	assert.Equal(t, MessageUnresolved, *resp.Message)
}

func TestDiagnose_PartialMatchStrict(t *testing.T) {
	e := New(loadDefault(t))

	resp := e.Diagnose([]string{"JG01"}, true)

	assert.Empty(t, resp.Diagnoses)
	assert.NotNil(t, resp.Diagnoses)
	require.NotNil(t, resp.Message)
	assert.Equal(t, MessageUnresolved, *resp.Message)
}

func TestDiagnose_EmptyQuery(t *testing.T) {
	e := New(loadDefault(t))

	for _, strict := range []bool{false, true} {
		resp := e.Diagnose(nil, strict)
		assert.Empty(t, resp.Diagnoses)
		assert.NotNil(t, resp.Message)
	}
}

func TestDiagnose_MultipleFullMatches(t *testing.T) {
	e := New(loadDefault(t))

	resp := e.Diagnose([]string{"JG01", "JG02", "JG03", "JG04", "JG16", "JG24"}, true)

	assert.Equal(t, []string{"P1", "P7"}, codes(resp))
	for _, d := range resp.Diagnoses {
		assert.True(t, d.Complete)
	}
	assert.Nil(t, resp.Message)
}

func TestDiagnose_NormalizesInput(t *testing.T) {
	e := New(loadDefault(t))

	messy := e.Diagnose([]string{" jg01", "JG02 ", "jg03", "JG04", "jg04", ""}, true)
	clean := e.Diagnose([]string{"JG01", "JG02", "JG03", "JG04"}, true)

	if diff := cmp.Diff(clean, messy); diff != "" {
		t.Errorf("normalized query differs (-clean +messy):\n%s", diff)
	}
}

func TestDiagnose_UnknownCodesNeverMatch(t *testing.T) {
	e := New(loadDefault(t))

	resp := e.Diagnose([]string{"ZZ99", "NOPE"}, false)

	assert.Empty(t, resp.Diagnoses)
	assert.NotNil(t, resp.Message)
}

func TestDiagnose_PreservesKnowledgeBaseOrder(t *testing.T) {
	kb := &knowledge.KnowledgeBase{
		Symptoms: []knowledge.Symptom{{Code: "A", Name: "a"}, {Code: "B", Name: "b"}},
		Diseases: []knowledge.Disease{
			{Code: "Z", Name: "partial", Symptoms: []string{"A", "B"}},
			{Code: "Y", Name: "complete", Symptoms: []string{"A"}},
		},
	}

	resp := New(kb).Diagnose([]string{"A"}, false)

	assert.Equal(t, []string{"Z", "Y"}, codes(resp))
	assert.Nil(t, resp.Message)
}

func TestDiagnose_DuplicateRuleCodesCollapse(t *testing.T) {
	kb := &knowledge.KnowledgeBase{
		Symptoms: []knowledge.Symptom{{Code: "A", Name: "a"}, {Code: "B", Name: "b"}},
		Diseases: []knowledge.Disease{
			{Code: "D", Name: "dup", Symptoms: []string{"B", "A", "B", "A"}},
		},
	}

	resp := New(kb).Diagnose([]string{"a"}, false)

	require.Len(t, resp.Diagnoses, 1)
	assert.Equal(t, []string{"A"}, resp.Diagnoses[0].Matched)
	assert.Equal(t, []string{"B"}, resp.Diagnoses[0].Missing)
	assert.InDelta(t, 0.5, resp.Diagnoses[0].Ratio(), 1e-9)
}

// Every subset of a disease's rule, in both modes, must keep the partition
// and filtering properties.
func TestDiagnose_Properties(t *testing.T) {
	kb := loadDefault(t)
	e := New(kb)

	queries := [][]string{
		nil,
		{"JG01"},
		{"JG01", "JG02"},
		{"JG15", "JG17", "JG18"},
		{"JG01", "JG05", "JG22", "JG23", "JG10"},
	}
	for _, s := range kb.Symptoms {
		queries = append(queries, []string{s.Code})
	}

	for _, q := range queries {
		set := map[string]struct{}{}
		for _, c := range Normalize(q) {
			set[c] = struct{}{}
		}

		for _, d := range kb.Diseases {
			r := Evaluate(d, set)

			union := append(append([]string{}, r.Matched...), r.Missing...)
			sort.Strings(union)
			want := d.RequiredSymptoms()
			sort.Strings(want)
			assert.Equal(t, want, union, "partition of %s for %v", d.Code, q)

			for _, m := range r.Matched {
				assert.NotContains(t, r.Missing, m)
			}
			assert.Equal(t, len(r.Missing) == 0, r.Complete)
			assert.True(t, sort.StringsAreSorted(r.Matched))
			assert.True(t, sort.StringsAreSorted(r.Missing))
		}

		strict := e.Diagnose(q, true)
		loose := e.Diagnose(q, false)
		assert.Subset(t, codes(loose), codes(strict), "strict must be a subset for %v", q)

		for _, resp := range []Response{strict, loose} {
			anyComplete := false
			for _, d := range resp.Diagnoses {
				anyComplete = anyComplete || d.Complete
				assert.NotEmpty(t, d.Matched)
			}
			assert.Equal(t, !anyComplete, resp.Message != nil)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := []string{" jg02", "JG01", "jg02 ", "", "   ", "Jg03"}

	once := Normalize(in)
	twice := Normalize(once)

	assert.Equal(t, []string{"JG02", "JG01", "JG03"}, once)
	assert.Equal(t, once, twice)
	assert.Empty(t, Normalize(nil))
}

func TestEvaluator_ConcurrentUse(t *testing.T) {
	e := New(loadDefault(t))
	want := e.Diagnose([]string{"JG01", "JG02"}, false)

	var wg sync.WaitGroup
	results := make([]Response, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Diagnose([]string{"jg02", "jg01"}, false)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
