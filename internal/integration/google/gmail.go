package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// MailMessage is a flattened inbox message: headers picked out, body
// decoded to plain text.
type MailMessage struct {
	ID      string
	Subject string
	From    string
	Body    string
}

type GmailClient interface {
	ListUnread(ctx context.Context, refreshToken, query string, max int64) ([]*MailMessage, error)
	MarkRead(ctx context.Context, refreshToken, messageID string) error
}

type gmailClient struct {
	oauth OAuthClient
}

func NewGmailClient(oauth OAuthClient) GmailClient {
	return &gmailClient{oauth: oauth}
}

func (c *gmailClient) service(ctx context.Context, refreshToken string) (*gmail.Service, error) {
	ts := c.oauth.TokenSource(ctx, refreshToken, KindParsing)
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

func (c *gmailClient) ListUnread(ctx context.Context, refreshToken, query string, max int64) ([]*MailMessage, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	list, err := svc.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*MailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", ref.Id, err)
		}
		messages = append(messages, flatten(msg))
	}
	return messages, nil
}

func (c *gmailClient) MarkRead(ctx context.Context, refreshToken, messageID string) error {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

func flatten(msg *gmail.Message) *MailMessage {
	out := &MailMessage{ID: msg.Id}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			out.Subject = h.Value
		case "From":
			out.From = h.Value
		}
	}
	out.Body = extractBody(msg.Payload)
	if out.Body == "" {
		out.Body = msg.Snippet
	}
	return out
}

// extractBody walks the MIME tree preferring text/plain parts.
func extractBody(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := extractBody(p); body != "" {
			return body
		}
	}
	if part.Body != nil && part.Body.Data != "" && strings.HasPrefix(part.MimeType, "text/") {
		return decodeBody(part.Body.Data)
	}
	return ""
}

// decodeBody decodes a message part body. Gmail sends unpadded
// base64url, but some gateways re-encode with padding or standard
// alphabet, so try those too.
func decodeBody(data string) string {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	return ""
}
