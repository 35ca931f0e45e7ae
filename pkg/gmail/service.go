package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"
	"replypilot-backend/internal/errs"
	"replypilot-backend/pkg/gauth"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = gauth.TokenUpdateFunc

// WatchResult reports the registered push subscription.
type WatchResult struct {
	HistoryID uint64
	Expiry    time.Time
}

// HistoryDelta lists the provider message ids added between two cursors.
type HistoryDelta struct {
	AddedMessageIDs []string
	NewHistoryID    uint64
}

const defaultCallTimeout = 60 * time.Second

type Service struct {
	creds   gauth.Credentials
	timeout time.Duration
}

func NewService(clientID, clientSecret string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Service{
		creds:   gauth.Credentials{ClientID: clientID, ClientSecret: clientSecret},
		timeout: timeout,
	}
}

// boundedContext caps every provider call; an expired deadline surfaces
// as a retryable upstream failure.
func (s *Service) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// getGmailService creates a Gmail service with the user's access token.
func (s *Service) getGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	client := gauth.NewHTTPClient(ctx, s.creds, accessToken, refreshToken, onTokenRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// ListHistory returns the message ids added to the mailbox after
// startHistoryID. Pages through the history list until exhausted.
func (s *Service) ListHistory(ctx context.Context, accessToken, refreshToken string, startHistoryID uint64, onTokenRefresh TokenUpdateFunc) (*HistoryDelta, error) {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	delta := &HistoryDelta{}
	seen := make(map[string]bool)
	pageToken := ""
	for {
		call := srv.Users.History.List("me").
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("%w: unable to list history: %v", errs.ErrUpstreamUnavailable, err)
		}
		if resp.HistoryId > delta.NewHistoryID {
			delta.NewHistoryID = resp.HistoryId
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				delta.AddedMessageIDs = append(delta.AddedMessageIDs, added.Message.Id)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return delta, nil
}

// GetMessage fetches a single message in full format.
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh TokenUpdateFunc) (*emaildomain.Email, error) {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to get message %s: %v", errs.ErrUpstreamUnavailable, messageID, err)
	}
	return convertGmailMessage(msg), nil
}

// SearchMessages runs a Gmail search query and returns up to maxResults
// converted messages, newest first.
func (s *Service) SearchMessages(ctx context.Context, accessToken, refreshToken, query string, maxResults int64, onTokenRefresh TokenUpdateFunc) ([]*emaildomain.Email, error) {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	listResp, err := srv.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to search messages: %v", errs.ErrUpstreamUnavailable, err)
	}

	emails := make([]*emaildomain.Email, 0, len(listResp.Messages))
	for _, m := range listResp.Messages {
		msg, err := srv.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			// Skip messages that disappeared between list and get
			continue
		}
		emails = append(emails, convertGmailMessage(msg))
	}
	return emails, nil
}

// Watch sets up push notifications for the user's mailbox
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh TokenUpdateFunc) (*WatchResult, error) {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: gmail watch failed: %v", errs.ErrUpstreamUnavailable, err)
	}
	return &WatchResult{
		HistoryID: resp.HistoryId,
		Expiry:    time.UnixMilli(resp.Expiration),
	}, nil
}

// Stop tears down the push subscription.
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: gmail stop failed: %v", errs.ErrUpstreamUnavailable, err)
	}
	return nil
}

// CreateDraft places a reply draft on the thread of the original message.
func (s *Service) CreateDraft(ctx context.Context, accessToken, refreshToken string, original *emaildomain.Email, body string, onTokenRefresh TokenUpdateFunc) error {
	ctx, cancel := s.boundedContext(ctx)
	defer cancel()
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		original.FromAddress, subject, body)

	draft := &gmail.Draft{
		Message: &gmail.Message{
			ThreadId: original.ProviderThreadID,
			Raw:      encodeWebSafe(raw),
		},
	}
	if _, err := srv.Users.Drafts.Create("me", draft).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: unable to create draft: %v", errs.ErrUpstreamUnavailable, err)
	}
	return nil
}
