// Package calendar wraps the Google Calendar FreeBusy API behind the
// narrow availability contract the context enricher needs.
package calendar

import (
	"context"
	"fmt"
	"time"

	"replypilot-backend/internal/errs"
	"replypilot-backend/pkg/gauth"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type TokenUpdateFunc = gauth.TokenUpdateFunc

// BusyInterval is one occupied block on the user's primary calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
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

// FreeBusy returns the busy intervals on the primary calendar in [from, to).
// The call carries a bounded timeout; expiry is a retryable upstream failure.
func (s *Service) FreeBusy(ctx context.Context, accessToken, refreshToken string, from, to time.Time, onTokenRefresh TokenUpdateFunc) ([]BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := gauth.NewHTTPClient(ctx, s.creds, accessToken, refreshToken, onTokenRefresh)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %v", err)
	}

	req := &calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}
	resp, err := srv.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: freebusy query failed: %v", errs.ErrUpstreamUnavailable, err)
	}

	var busy []BusyInterval
	if cal, ok := resp.Calendars["primary"]; ok {
		for _, interval := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, interval.Start)
			end, err2 := time.Parse(time.RFC3339, interval.End)
			if err1 != nil || err2 != nil {
				continue
			}
			busy = append(busy, BusyInterval{Start: start, End: end})
		}
	}
	return busy, nil
}
