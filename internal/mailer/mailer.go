package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jerseysync/internal/config"
	"jerseysync/internal/metrics"
	"jerseysync/internal/retry"
)

// Message is one outbound email. Body is HTML; a plain-text alternative
// is derived automatically.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Service creates Gmail drafts and sends them. Drafts are the default
// path: a human reviews them in the mailbox before anything goes out.
type Service struct {
	srv    *gmail.Service
	sender string
	policy *retry.Policy
	logger *zerolog.Logger
}

// NewService builds a Gmail client from service account credentials with
// domain-wide delegation impersonating the configured sender.
func NewService(ctx context.Context, cfg config.GoogleConfig, policy *retry.Policy, logger *zerolog.Logger) (*Service, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}
	jwtConfig.Subject = cfg.SenderEmail

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return &Service{srv: srv, sender: cfg.SenderEmail, policy: policy, logger: logger}, nil
}

// CreateDraft saves the message as a Gmail draft and returns its id.
func (s *Service) CreateDraft(ctx context.Context, msg Message) (string, error) {
	raw, err := encodeMessage(s.sender, msg)
	if err != nil {
		return "", err
	}

	var draft *gmail.Draft
	err = s.policy.Do(ctx, "gmail.create_draft", func(ctx context.Context) error {
		var err error
		draft, err = s.srv.Users.Drafts.Create("me", &gmail.Draft{
			Message: &gmail.Message{Raw: raw},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create draft for %s: %w", msg.To, err)
	}

	metrics.IncDraftCreated()
	s.logger.Info().Str("draft_id", draft.Id).Str("to", msg.To).Msg("draft created")
	return draft.Id, nil
}

// Send sends the message immediately, bypassing draft review.
func (s *Service) Send(ctx context.Context, msg Message) (string, error) {
	raw, err := encodeMessage(s.sender, msg)
	if err != nil {
		return "", err
	}

	var sent *gmail.Message
	err = s.policy.Do(ctx, "gmail.send", func(ctx context.Context) error {
		var err error
		sent, err = s.srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", msg.To, err)
	}

	s.logger.Info().Str("message_id", sent.Id).Str("to", msg.To).Msg("message sent")
	return sent.Id, nil
}

// SendResult is the outcome of sending one draft from the mailbox.
type SendResult struct {
	DraftID   string
	MessageID string
	Skipped   bool
	Err       error
}

// SendAllDrafts sends every draft in the mailbox that has a recipient.
// Drafts without a To: header are skipped, not failed; one bad draft does
// not stop the rest.
func (s *Service) SendAllDrafts(ctx context.Context) ([]SendResult, error) {
	var list *gmail.ListDraftsResponse
	err := s.policy.Do(ctx, "gmail.list_drafts", func(ctx context.Context) error {
		var err error
		list, err = s.srv.Users.Drafts.List("me").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	var results []SendResult
	for _, d := range list.Drafts {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, s.sendDraft(ctx, d.Id))
	}

	s.logger.Info().Int("total", len(results)).Msg("draft send sweep finished")
	return results, nil
}

func (s *Service) sendDraft(ctx context.Context, draftID string) SendResult {
	res := SendResult{DraftID: draftID}

	var draft *gmail.Draft
	err := s.policy.Do(ctx, "gmail.get_draft", func(ctx context.Context) error {
		var err error
		draft, err = s.srv.Users.Drafts.Get("me", draftID).Format("metadata").Context(ctx).Do()
		return err
	})
	if err != nil {
		res.Err = err
		return res
	}

	if headerValue(draft.Message, "To") == "" {
		s.logger.Warn().Str("draft_id", draftID).Msg("draft has no recipient, skipping")
		res.Skipped = true
		return res
	}

	var sent *gmail.Message
	err = s.policy.Do(ctx, "gmail.send_draft", func(ctx context.Context) error {
		var err error
		sent, err = s.srv.Users.Drafts.Send("me", &gmail.Draft{Id: draftID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		res.Err = err
		s.logger.Error().Err(err).Str("draft_id", draftID).Msg("failed to send draft")
		return res
	}

	res.MessageID = sent.Id
	s.logger.Info().Str("draft_id", draftID).Str("message_id", sent.Id).Msg("draft sent")
	return res
}

func headerValue(m *gmail.Message, name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}

var htmlTagRe = regexp.MustCompile(`<[^<]+?>`)

// StripTags derives the plain-text alternative from an HTML body.
func StripTags(html string) string {
	return htmlTagRe.ReplaceAllString(html, "")
}

// encodeMessage builds a multipart/alternative MIME message and encodes
// it the way the Gmail API expects raw payloads.
func encodeMessage(from string, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", fmt.Errorf("message has no recipient")
	}

	const boundary = "jerseysync-alt"
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(StripTags(msg.HTML))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}
