package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"cattle-expert/internal/diagnosis"
	"cattle-expert/internal/knowledge"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Options struct {
	FontPaths []string
	ChatID    int64
}

type Service struct {
	kb        *knowledge.KnowledgeBase
	fontPaths []string
	tgClient  TelegramClient
	chatID    int64
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

// NewService builds the report service. tg may be nil when delivery is not
// configured; Generate still works.
func NewService(kb *knowledge.KnowledgeBase, tg TelegramClient, opts Options, logger *logrus.Logger) *Service {
	settings := gobreaker.Settings{
		Name:        "TelegramDelivery",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Service{
		kb:        kb,
		fontPaths: opts.FontPaths,
		tgClient:  tg,
		chatID:    opts.ChatID,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.New,
	}
}

func (s *Service) Generate(ctx context.Context, q diagnosis.Query) (*diagnosis.Report, error) {
	id := s.newID()
	created := s.now()

	s.logger.WithField("report_id", id).Debug("Generating PDF report")

	pdf, err := s.render(id, created, q)
	if err != nil {
		return nil, err
	}

	return &diagnosis.Report{
		ID:       id,
		FileName: fmt.Sprintf("laporan_%s.pdf", id),
		Summary:  s.summary(id, created, q),
		PDF:      pdf,
	}, nil
}

// Deliver sends the summary and the PDF to the configured veterinarian chat.
func (s *Service) Deliver(ctx context.Context, r *diagnosis.Report) error {
	if s.tgClient == nil || s.chatID == 0 {
		return diagnosis.ErrDeliveryDisabled
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		if err := s.tgClient.SendMessage(ctx, s.chatID, r.Summary); err != nil {
			return nil, err
		}
		return nil, s.tgClient.SendDocument(ctx, s.chatID, r.PDF, r.FileName)
	})
	if err != nil {
		return fmt.Errorf("failed to deliver report %s: %w", r.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": r.ID,
		"chat_id":   s.chatID,
	}).Info("Report delivered")
	return nil
}

func (s *Service) summary(id uuid.UUID, created time.Time, q diagnosis.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Laporan diagnosa %s (%s)\n", id, created.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Gejala: %s\n", strings.Join(q.Selected, ", "))
	for _, d := range q.Response.Diagnoses {
		fmt.Fprintf(&b, "- %s %s: %s\n", d.Disease.Code, d.Disease.Name, status(d.Complete, len(d.Matched), len(d.Matched)+len(d.Missing)))
	}
	if q.Response.Message != nil {
		fmt.Fprintf(&b, "Kesimpulan: %s\n", *q.Response.Message)
	}
	return b.String()
}

func status(complete bool, matched, total int) string {
	if complete {
		return fmt.Sprintf("lengkap (%d/%d)", matched, total)
	}
	return fmt.Sprintf("sebagian (%d/%d)", matched, total)
}
