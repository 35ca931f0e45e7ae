package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	artifactusecase "replypilot-backend/internal/artifact/usecase"
	"replypilot-backend/internal/errs"
	ingestusecase "replypilot-backend/internal/ingest/usecase"
	jobdomain "replypilot-backend/internal/job/domain"
	pipelineusecase "replypilot-backend/internal/pipeline/usecase"
)

// RegisterHandlers binds every job kind to its implementation. Called
// once at startup, after all usecases exist.
func RegisterHandlers(jobs JobUsecase, ingest ingestusecase.IngestUsecase, pipeline *pipelineusecase.Pipeline, artifacts artifactusecase.ArtifactUsecase) {
	jobs.Register(jobdomain.KindProcessNotification, processNotificationHandler(ingest))
	jobs.Register(jobdomain.KindGenerateReply, generateReplyHandler(pipeline))
	jobs.Register(jobdomain.KindOnboarding, onboardingHandler(jobs))
	jobs.Register(jobdomain.KindFetchMail, fetchMailHandler(ingest, jobs))
	jobs.Register(jobdomain.KindGenerateArtifact, generateArtifactHandler(artifacts, jobs))
}

func decodePayload(job *jobdomain.Job, v interface{}) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("%w: undecodable payload for job %s: %v", errs.ErrValidation, job.ID, err)
	}
	return nil
}

func processNotificationHandler(ingest ingestusecase.IngestUsecase) Handler {
	return func(ctx context.Context, job *jobdomain.Job) (interface{}, error) {
		var payload jobdomain.NotificationPayload
		if err := decodePayload(job, &payload); err != nil {
			return nil, err
		}
		if err := ingest.ProcessNotification(ctx, payload.EmailAddress, payload.HistoryID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"historyId": payload.HistoryID}, nil
	}
}

func generateReplyHandler(pipeline *pipelineusecase.Pipeline) Handler {
	return func(ctx context.Context, job *jobdomain.Job) (interface{}, error) {
		var payload jobdomain.GenerateReplyPayload
		if err := decodePayload(job, &payload); err != nil {
			return nil, err
		}
		reply, err := pipeline.Run(ctx, payload.UserID, payload.EmailID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"replyId":       reply.ID,
			"confidence":    reply.Confidence,
			"lowConfidence": reply.LowConfidence,
		}, nil
	}
}

// onboardingHandler starts the composite flow. Each step runs as its own
// job; the chain flags carry the flow forward and the child job ids land
// in each parent's return value.
func onboardingHandler(jobs JobUsecase) Handler {
	return func(ctx context.Context, job *jobdomain.Job) (interface{}, error) {
		var payload jobdomain.OnboardingPayload
		if err := decodePayload(job, &payload); err != nil {
			return nil, err
		}
		child, err := jobs.Enqueue(jobdomain.QueueOnboarding, jobdomain.KindFetchMail, payload.UserID,
			jobdomain.FetchMailPayload{UserID: payload.UserID, Chain: true})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"fetchMailJobId": child.ID}, nil
	}
}

func fetchMailHandler(ingest ingestusecase.IngestUsecase, jobs JobUsecase) Handler {
	return func(ctx context.Context, job *jobdomain.Job) (interface{}, error) {
		var payload jobdomain.FetchMailPayload
		if err := decodePayload(job, &payload); err != nil {
			return nil, err
		}
		imported, err := ingest.FetchMail(ctx, payload.UserID)
		if err != nil {
			return nil, err
		}

		result := map[string]interface{}{"imported": imported}
		if payload.Chain {
			child, err := jobs.Enqueue(jobdomain.QueueOnboarding, jobdomain.KindGenerateArtifact, payload.UserID,
				jobdomain.ArtifactPayload{UserID: payload.UserID, Kind: string(artifactdomain.KindStylePrompt), Chain: true})
			if err != nil {
				return nil, err
			}
			result["stylePromptJobId"] = child.ID
		}
		return result, nil
	}
}

func generateArtifactHandler(artifacts artifactusecase.ArtifactUsecase, jobs JobUsecase) Handler {
	return func(ctx context.Context, job *jobdomain.Job) (interface{}, error) {
		var payload jobdomain.ArtifactPayload
		if err := decodePayload(job, &payload); err != nil {
			return nil, err
		}

		artifact, err := artifacts.GenerateAndActivate(ctx, payload.UserID, artifactdomain.Kind(payload.Kind))
		if err != nil {
			return nil, err
		}

		result := map[string]interface{}{
			"artifactId": artifact.ID,
			"kind":       payload.Kind,
			"version":    artifact.Version,
		}
		if payload.Chain && artifactdomain.Kind(payload.Kind) == artifactdomain.KindStylePrompt {
			// Rulebook and graph generation are independent of each other;
			// they run as parallel jobs and skip individually when already
			// generated.
			for _, kind := range []artifactdomain.Kind{artifactdomain.KindPolicyRulebook, artifactdomain.KindInteractionGraph} {
				child, err := jobs.Enqueue(jobdomain.QueueOnboarding, jobdomain.KindGenerateArtifact, payload.UserID,
					jobdomain.ArtifactPayload{UserID: payload.UserID, Kind: string(kind)})
				if err != nil {
					return nil, err
				}
				result[string(kind)+"JobId"] = child.ID
			}
		}
		return result, nil
	}
}
