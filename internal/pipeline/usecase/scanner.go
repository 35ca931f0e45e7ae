package usecase

import (
	"context"
	"fmt"

	emaildomain "replypilot-backend/internal/email/domain"
	"replypilot-backend/internal/errs"
	pipelinedomain "replypilot-backend/internal/pipeline/domain"
	"replypilot-backend/pkg/ai"

	"go.uber.org/zap"
)

// Scanner is the first pipeline stage: one model call that classifies
// the email and emits the enrichment query.
type Scanner struct {
	aiClient ai.Client
	logger   *zap.Logger
}

func NewScanner(aiClient ai.Client, logger *zap.Logger) *Scanner {
	return &Scanner{aiClient: aiClient, logger: logger}
}

// Scan classifies the email. A malformed model response is retried once
// with the same input; if it stays malformed the scanner degrades to the
// minimal default instead of aborting, so generation always proceeds.
func (s *Scanner) Scan(ctx context.Context, email *emaildomain.Email) *pipelinedomain.ScannerOutput {
	prompt := buildScanPrompt(email)

	for attempt := 1; attempt <= 2; attempt++ {
		out, err := s.scanOnce(ctx, prompt)
		if err == nil {
			return out
		}
		s.logger.Warn("scanner attempt failed",
			zap.String("emailID", email.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s.logger.Warn("scanner degraded to default output", zap.String("emailID", email.ID))
	return pipelinedomain.DefaultScannerOutput()
}

func (s *Scanner) scanOnce(ctx context.Context, prompt string) (*pipelinedomain.ScannerOutput, error) {
	raw, err := s.aiClient.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out pipelinedomain.ScannerOutput
	if err := ai.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamFormat, err)
	}
	if !out.PrimaryIntent.Valid() {
		return nil, fmt.Errorf("%w: unknown intent %q", errs.ErrUpstreamFormat, out.PrimaryIntent)
	}
	if !out.UrgencyLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", errs.ErrUpstreamFormat, out.UrgencyLevel)
	}
	return &out, nil
}
