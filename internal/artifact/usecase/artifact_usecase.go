package usecase

import (
	"context"
	"fmt"
	"strings"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	"replypilot-backend/internal/artifact/repository"
	emailrepo "replypilot-backend/internal/email/repository"
	"replypilot-backend/internal/errs"
	"replypilot-backend/pkg/ai"
	"replypilot-backend/pkg/kmutex"
	"replypilot-backend/pkg/retry"

	"go.uber.org/zap"
)

// historySampleSize bounds how much sent mail is aggregated into a
// generation prompt.
const historySampleSize = 50

// Eligibility reports whether persona generation can run for a user.
type Eligibility struct {
	CanGenerate     bool  `json:"canGenerate"`
	EmailCount      int64 `json:"emailCount"`
	MinimumRequired int   `json:"minimumRequired"`
}

// ArtifactUsecase is the lifecycle manager for versioned persona
// artifacts.
type ArtifactUsecase interface {
	// GenerateAndActivate runs model generation for the kind and
	// activates the result. Returns InsufficientDataError when the
	// eligibility precondition is unmet; short-circuits to the existing
	// active row when it was already generated.
	GenerateAndActivate(ctx context.Context, userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error)

	// ActivateContent activates caller-provided content as a new version.
	ActivateContent(userID string, kind artifactdomain.Kind, content string) (*artifactdomain.Artifact, error)

	GetActive(userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error)

	Eligibility(userID string) (*Eligibility, error)
}

type artifactUsecase struct {
	artifactRepo  repository.ArtifactRepository
	emailRepo     emailrepo.EmailRepository
	aiClient      ai.Client
	logger        *zap.Logger
	minSentEmails int

	// Concurrent activations for the same (user, kind) serialize here;
	// the unique version index backstops racers from other processes.
	locks kmutex.KeyedMutex
}

func NewArtifactUsecase(artifactRepo repository.ArtifactRepository, emailRepo emailrepo.EmailRepository, aiClient ai.Client, minSentEmails int, logger *zap.Logger) ArtifactUsecase {
	return &artifactUsecase{
		artifactRepo:  artifactRepo,
		emailRepo:     emailRepo,
		aiClient:      aiClient,
		logger:        logger,
		minSentEmails: minSentEmails,
	}
}

func activationKey(userID string, kind artifactdomain.Kind) string {
	return userID + ":" + string(kind)
}

func (u *artifactUsecase) Eligibility(userID string) (*Eligibility, error) {
	count, err := u.emailRepo.CountSent(userID)
	if err != nil {
		return nil, err
	}
	return &Eligibility{
		CanGenerate:     count >= int64(u.minSentEmails),
		EmailCount:      count,
		MinimumRequired: u.minSentEmails,
	}, nil
}

func (u *artifactUsecase) GenerateAndActivate(ctx context.Context, userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", errs.ErrValidation, kind)
	}

	unlock := u.locks.Lock(activationKey(userID, kind))
	defer unlock()

	// Already generated: the onboarding flow retries without spending
	// redundant model calls.
	existing, err := u.artifactRepo.GetActive(userID, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsGenerated {
		u.logger.Info("artifact already generated, skipping",
			zap.String("userID", userID),
			zap.String("kind", string(kind)),
			zap.Int("version", existing.Version))
		return existing, nil
	}

	eligibility, err := u.Eligibility(userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanGenerate {
		return nil, &errs.InsufficientDataError{
			Required: eligibility.MinimumRequired,
			Actual:   int(eligibility.EmailCount),
		}
	}

	emails, err := u.emailRepo.RecentSent(userID, historySampleSize)
	if err != nil {
		return nil, err
	}

	prompt := buildGenerationPrompt(kind, emails)
	var content string
	err = retry.Do(ctx, retry.DefaultPolicy(), func(ctx context.Context) error {
		out, err := u.aiClient.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		content = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if kind != artifactdomain.KindStylePrompt {
		// Rulebook and graph content is structured JSON
		content = ai.ExtractJSON(content)
	}

	artifact, err := u.artifactRepo.Activate(userID, kind, content, true)
	if err != nil {
		return nil, err
	}
	u.logger.Info("artifact generated and activated",
		zap.String("userID", userID),
		zap.String("kind", string(kind)),
		zap.Int("version", artifact.Version))
	return artifact, nil
}

func (u *artifactUsecase) ActivateContent(userID string, kind artifactdomain.Kind, content string) (*artifactdomain.Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", errs.ErrValidation, kind)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", errs.ErrValidation)
	}

	unlock := u.locks.Lock(activationKey(userID, kind))
	defer unlock()

	return u.artifactRepo.Activate(userID, kind, content, false)
}

func (u *artifactUsecase) GetActive(userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", errs.ErrValidation, kind)
	}
	return u.artifactRepo.GetActive(userID, kind)
}
