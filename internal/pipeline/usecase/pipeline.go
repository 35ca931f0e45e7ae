package usecase

import (
	"context"
	"fmt"

	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	"replypilot-backend/internal/errs"

	"go.uber.org/zap"
)

// Pipeline runs the two-stage reply flow: scan, enrich, generate. The
// policy gate runs upstream at ingestion time; by the time an email is
// here it has already been judged eligible.
type Pipeline struct {
	scanner   *Scanner
	enricher  *Enricher
	generator *Generator
	emailRepo emailrepo.EmailRepository
	logger    *zap.Logger
}

func NewPipeline(scanner *Scanner, enricher *Enricher, generator *Generator, emailRepo emailrepo.EmailRepository, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		scanner:   scanner,
		enricher:  enricher,
		generator: generator,
		emailRepo: emailRepo,
		logger:    logger,
	}
}

// Run generates (or returns the existing) reply for the stored email.
func (p *Pipeline) Run(ctx context.Context, userID, emailID string) (*emaildomain.GeneratedReply, error) {
	email, err := p.emailRepo.FindByID(emailID)
	if err != nil {
		return nil, err
	}
	if email == nil || email.UserID != userID {
		return nil, fmt.Errorf("%w: email %s", errs.ErrNotFound, emailID)
	}

	scanOut := p.scanner.Scan(ctx, email)
	p.logger.Debug("email scanned",
		zap.String("emailID", emailID),
		zap.String("intent", string(scanOut.PrimaryIntent)),
		zap.String("urgency", string(scanOut.UrgencyLevel)),
		zap.Bool("calendarCheck", scanOut.NeedsCalendarCheck))

	info, err := p.enricher.Enrich(ctx, userID, scanOut)
	if err != nil {
		return nil, err
	}

	return p.generator.Generate(ctx, email, scanOut, info)
}
