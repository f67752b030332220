package inference

import "sort"

// Rank returns a copy of results ordered for display: complete matches
// first, then by descending match ratio. Ties keep their original order.
func Rank(results []DiagnosisResult) []DiagnosisResult {
	ranked := make([]DiagnosisResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Complete != ranked[j].Complete {
			return ranked[i].Complete
		}
		return ranked[i].Ratio() > ranked[j].Ratio()
	})
	return ranked
}
