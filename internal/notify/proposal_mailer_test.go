package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

type capturingSender struct {
	last *EmailMessage
	err  error
}

func (s *capturingSender) Send(ctx context.Context, msg EmailMessage) error {
	s.last = &msg
	return s.err
}

func TestSendProposalFormatsMessage(t *testing.T) {
	sender := &capturingSender{}
	mailer := NewProposalMailer(sender, "https://app.beautyprecision.io", logging.Default())

	err := mailer.SendProposal(context.Background(), ProposalEmail{
		To:         "jane@example.com",
		ToName:     "Jane",
		Title:      "Laser package",
		TotalValue: 1200,
		ProposalID: "prop-1",
	})
	if err != nil {
		t.Fatalf("SendProposal returned error: %v", err)
	}
	if sender.last == nil {
		t.Fatal("expected an email to be sent")
	}
	if sender.last.To != "jane@example.com" {
		t.Fatalf("unexpected recipient %s", sender.last.To)
	}
	if !strings.Contains(sender.last.Body, "/sales/proposals/prop-1") {
		t.Fatalf("expected proposal link in body, got %q", sender.last.Body)
	}
}

func TestSendProposalSkipsWithoutEmail(t *testing.T) {
	sender := &capturingSender{}
	mailer := NewProposalMailer(sender, "", logging.Default())

	if err := mailer.SendProposal(context.Background(), ProposalEmail{ProposalID: "prop-1"}); err != nil {
		t.Fatalf("expected nil error for missing recipient, got %v", err)
	}
	if sender.last != nil {
		t.Fatal("expected no email to be sent")
	}
}

func TestSendProposalPropagatesSenderError(t *testing.T) {
	sender := &capturingSender{err: errors.New("smtp down")}
	mailer := NewProposalMailer(sender, "", logging.Default())

	err := mailer.SendProposal(context.Background(), ProposalEmail{To: "jane@example.com", Title: "x"})
	if err == nil {
		t.Fatal("expected sender error to propagate to the caller")
	}
}

func TestNilMailerIsSafe(t *testing.T) {
	var mailer *ProposalMailer
	if err := mailer.SendProposal(context.Background(), ProposalEmail{To: "jane@example.com"}); err != nil {
		t.Fatalf("nil mailer should be a no-op, got %v", err)
	}
}
