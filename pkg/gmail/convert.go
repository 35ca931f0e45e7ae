package gmail

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"

	"google.golang.org/api/gmail/v1"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func convertGmailMessage(msg *gmail.Message) *emaildomain.Email {
	from := getHeader(msg.Payload.Headers, "From")
	fromName := from
	fromAddress := from
	// Extract name and address from "Name <email@example.com>" format
	if idx := strings.Index(from, "<"); idx >= 0 {
		fromName = strings.TrimSpace(from[:idx])
		fromAddress = strings.Trim(from[idx:], "<> ")
	}

	body, isHTML := getEmailBody(msg.Payload)
	snippet := msg.Snippet
	if snippet == "" {
		snippet = body
		if isHTML {
			snippet = htmlTagRe.ReplaceAllString(snippet, " ")
		}
		snippet = strings.Join(strings.Fields(snippet), " ")
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
	}

	return &emaildomain.Email{
		ProviderMessageID: msg.Id,
		ProviderThreadID:  msg.ThreadId,
		Subject:           getHeader(msg.Payload.Headers, "Subject"),
		FromAddress:       strings.ToLower(fromAddress),
		FromName:          fromName,
		ToAddress:         getHeader(msg.Payload.Headers, "To"),
		Snippet:           snippet,
		Body:              body,
		IsSent:            hasLabel(msg.LabelIds, "SENT"),
		HasAttachments:    hasAttachments(msg.Payload),
		InternalDate:      time.Unix(msg.InternalDate/1000, 0),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/html" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						htmlBody = string(data)
					}
				}
			} else if part.MimeType == "text/plain" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						plainBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	// Plain text is preferred for prompting; fall back to HTML
	if plainBody != "" {
		return plainBody, false
	}
	return htmlBody, htmlBody != ""
}

func hasAttachments(payload *gmail.MessagePart) bool {
	found := false

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
				found = true
				return
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}

	walk(payload.Parts)
	return found
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}

func encodeWebSafe(raw string) string {
	return base64.URLEncoding.EncodeToString([]byte(raw))
}
