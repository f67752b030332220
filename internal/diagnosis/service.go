package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"cattle-expert/internal/inference"
	"cattle-expert/internal/knowledge"
)

// ReportService renders a diagnosis and delivers it to a veterinarian.
type ReportService interface {
	Generate(ctx context.Context, q Query) (*Report, error)
	Deliver(ctx context.Context, r *Report) error
}

type Service interface {
	KnowledgeBase() *knowledge.KnowledgeBase
	Symptoms(ctx context.Context) []knowledge.Symptom
	Diagnose(ctx context.Context, selected []string, strict bool) (inference.Response, error)
}

type service struct {
	kb        *knowledge.KnowledgeBase
	evaluator *inference.Evaluator
	known     map[string]struct{}
	cache     *lru.Cache[string, inference.Response]
	logger    *logrus.Logger
}

// NewService wraps a loaded knowledge base. cacheSize bounds the number of
// memoized responses; zero disables memoization.
func NewService(kb *knowledge.KnowledgeBase, cacheSize int, logger *logrus.Logger) (Service, error) {
	s := &service{
		kb:        kb,
		evaluator: inference.New(kb),
		known:     kb.SymptomCodes(),
		logger:    logger,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, inference.Response](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnosis cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func (s *service) KnowledgeBase() *knowledge.KnowledgeBase {
	return s.kb
}

func (s *service) Symptoms(ctx context.Context) []knowledge.Symptom {
	return s.kb.Symptoms
}

// Diagnose rejects codes outside the catalog, then evaluates the query.
// Cached responses are shared and must be treated as read-only.
func (s *service) Diagnose(ctx context.Context, selected []string, strict bool) (inference.Response, error) {
	codes := inference.Normalize(selected)

	var unknown []string
	for _, code := range codes {
		if _, ok := s.known[code]; !ok {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return inference.Response{}, &UnknownSymptomsError{Invalid: unknown}
	}

	key := cacheKey(codes, strict)
	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			s.logger.WithField("query", key).Debug("Diagnosis served from cache")
			return resp, nil
		}
	}

	resp := s.evaluator.Diagnose(codes, strict)

	s.logger.WithFields(logrus.Fields{
		"selected": len(codes),
		"strict":   strict,
		"results":  len(resp.Diagnoses),
		"resolved": resp.Resolved(),
	}).Info("Diagnosis evaluated")

	if s.cache != nil {
		s.cache.Add(key, resp)
	}
	return resp, nil
}

func cacheKey(codes []string, strict bool) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	return strconv.FormatBool(strict) + "|" + strings.Join(sorted, ",")
}
