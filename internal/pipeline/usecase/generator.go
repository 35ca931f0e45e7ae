package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	artifactrepo "replypilot-backend/internal/artifact/repository"
	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	"replypilot-backend/internal/errs"
	pipelinedomain "replypilot-backend/internal/pipeline/domain"
	"replypilot-backend/pkg/ai"
	"replypilot-backend/pkg/gauth"
	"replypilot-backend/pkg/kmutex"

	"go.uber.org/zap"
)

// Drafter mirrors the Gmail draft operation the generator uses after a
// reply is persisted.
type Drafter interface {
	CreateDraft(ctx context.Context, accessToken, refreshToken string, original *emaildomain.Email, body string, onTokenRefresh gauth.TokenUpdateFunc) error
}

// Generator is pipeline stage 2b: one model call combining the email,
// the enriched context, and the user's persona artifacts into a reply.
type Generator struct {
	aiClient     ai.Client
	replyRepo    emailrepo.GeneratedReplyRepository
	artifactRepo artifactrepo.ArtifactRepository
	drafter      Drafter
	tokens       TokenProvider
	logger       *zap.Logger

	// Two pipelines must never generate for the same email concurrently.
	// The unique email_id index is the cross-process backstop.
	locks kmutex.KeyedMutex
}

func NewGenerator(aiClient ai.Client, replyRepo emailrepo.GeneratedReplyRepository, artifactRepo artifactrepo.ArtifactRepository, drafter Drafter, tokens TokenProvider, logger *zap.Logger) *Generator {
	return &Generator{
		aiClient:     aiClient,
		replyRepo:    replyRepo,
		artifactRepo: artifactRepo,
		drafter:      drafter,
		tokens:       tokens,
		logger:       logger,
	}
}

// Generate produces and persists the reply for the email. Idempotent: an
// email that already has a reply returns the existing record unchanged.
func (g *Generator) Generate(ctx context.Context, email *emaildomain.Email, scanOut *pipelinedomain.ScannerOutput, info *pipelinedomain.ContextualInformation) (*emaildomain.GeneratedReply, error) {
	unlock := g.locks.Lock(email.ID)
	defer unlock()

	existing, err := g.replyRepo.FindByEmailID(email.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	stylePrompt, rulebook, senderEntry, err := g.loadPersona(email.UserID, email.FromAddress)
	if err != nil {
		return nil, err
	}

	prompt := buildGeneratePrompt(email, stylePrompt, rulebook, senderEntry, info)
	output, lowConfidence, err := g.completeWithValidation(ctx, prompt)
	if err != nil {
		return nil, err
	}

	reply := &emaildomain.GeneratedReply{
		EmailID:          email.ID,
		UserID:           email.UserID,
		Draft:            output.ContextualDraft,
		Confidence:       output.ConfidenceScore,
		Reasoning:        output.Reasoning,
		SuggestedActions: output.SuggestedActions,
		KeyFacts:         output.KeyFactsUsed,
		LowConfidence:    lowConfidence,
	}
	stored, created, err := g.replyRepo.Create(reply)
	if err != nil {
		return nil, err
	}
	if !created {
		// A concurrent writer got there first; its record wins.
		return stored, nil
	}

	g.createDraftBestEffort(ctx, email, stored.Draft)

	g.logger.Info("reply generated",
		zap.String("emailID", email.ID),
		zap.String("userID", email.UserID),
		zap.Int("confidence", stored.Confidence),
		zap.Bool("lowConfidence", stored.LowConfidence))
	return stored, nil
}

func (g *Generator) loadPersona(userID, senderAddress string) (stylePrompt, rulebook, senderEntry string, err error) {
	stylePrompt = defaultStylePrompt
	if artifact, err := g.artifactRepo.GetActive(userID, artifactdomain.KindStylePrompt); err != nil {
		return "", "", "", err
	} else if artifact != nil {
		stylePrompt = artifact.Content
	}

	if artifact, err := g.artifactRepo.GetActive(userID, artifactdomain.KindPolicyRulebook); err != nil {
		return "", "", "", err
	} else if artifact != nil {
		rulebook = artifact.Content
	}

	if artifact, err := g.artifactRepo.GetActive(userID, artifactdomain.KindInteractionGraph); err != nil {
		return "", "", "", err
	} else if artifact != nil {
		senderEntry = artifactdomain.GraphEntryForSender(artifact.Content, senderAddress).Describe()
	}
	return stylePrompt, rulebook, senderEntry, nil
}

// generationWire keeps the confidence score raw so a non-numeric value
// can be told apart from a missing one.
type generationWire struct {
	ContextualDraft  string          `json:"contextualDraft"`
	SuggestedActions []string        `json:"suggestedActions"`
	ConfidenceScore  json.RawMessage `json:"confidenceScore"`
	Reasoning        string          `json:"reasoning"`
	KeyFactsUsed     []string        `json:"keyFactsUsed"`
}

// completeWithValidation runs the model call and validates the output
// schema. An invalid confidence score is a formatting error: retried
// once, then degraded to score 0 with the low-confidence flag set while
// the draft is still kept.
func (g *Generator) completeWithValidation(ctx context.Context, prompt string) (*pipelinedomain.FinalContextOutput, bool, error) {
	var lastWire *generationWire
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := g.aiClient.Complete(ctx, prompt)
		if err != nil {
			return nil, false, err
		}

		var wire generationWire
		if err := ai.DecodeJSON(raw, &wire); err != nil {
			g.logger.Warn("generator output malformed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		lastWire = &wire

		score, err := parseConfidence(wire.ConfidenceScore)
		if err != nil {
			g.logger.Warn("invalid confidence score", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return &pipelinedomain.FinalContextOutput{
			ContextualDraft:  wire.ContextualDraft,
			SuggestedActions: wire.SuggestedActions,
			ConfidenceScore:  score,
			Reasoning:        wire.Reasoning,
			KeyFactsUsed:     wire.KeyFactsUsed,
		}, false, nil
	}

	if lastWire == nil {
		return nil, false, fmt.Errorf("%w: generator output unparseable after retry", errs.ErrUpstreamFormat)
	}
	return &pipelinedomain.FinalContextOutput{
		ContextualDraft:  lastWire.ContextualDraft,
		SuggestedActions: lastWire.SuggestedActions,
		ConfidenceScore:  0,
		Reasoning:        lastWire.Reasoning,
		KeyFactsUsed:     lastWire.KeyFactsUsed,
	}, true, nil
}

func parseConfidence(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing confidence score", errs.ErrUpstreamFormat)
	}
	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return 0, fmt.Errorf("%w: non-numeric confidence score %s", errs.ErrUpstreamFormat, raw)
	}
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("%w: confidence score %v out of range", errs.ErrUpstreamFormat, score)
	}
	return int(score), nil
}

// createDraftBestEffort pushes the reply into the user's Gmail drafts.
// Draft creation never fails generation; the stored reply is the source
// of truth.
func (g *Generator) createDraftBestEffort(ctx context.Context, email *emaildomain.Email, body string) {
	if g.drafter == nil {
		return
	}
	access, refresh, err := g.tokens.Tokens(email.UserID)
	if err != nil {
		g.logger.Warn("draft skipped, no provider tokens", zap.String("userID", email.UserID), zap.Error(err))
		return
	}
	if err := g.drafter.CreateDraft(ctx, access, refresh, email, body, g.tokens.OnTokenRefresh(email.UserID)); err != nil {
		g.logger.Warn("gmail draft creation failed",
			zap.String("emailID", email.ID),
			zap.Error(err))
	}
}
