package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

// ProposalEmail carries what the mailer needs to notify a lead about a sent
// proposal.
type ProposalEmail struct {
	To         string
	ToName     string
	Title      string
	TotalValue float64
	ProposalID string
	ValidUntil *time.Time
}

// ProposalMailer formats and sends proposal notifications to leads. It is a
// best-effort collaborator of the workflow engine; callers log send failures
// and move on.
type ProposalMailer struct {
	sender  EmailSender
	baseURL string
	logger  *logging.Logger
}

// NewProposalMailer creates a mailer. A nil sender disables sending.
func NewProposalMailer(sender EmailSender, baseURL string, logger *logging.Logger) *ProposalMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProposalMailer{sender: sender, baseURL: baseURL, logger: logger}
}

// SendProposal emails the lead a link to the proposal.
func (m *ProposalMailer) SendProposal(ctx context.Context, email ProposalEmail) error {
	if m == nil || m.sender == nil {
		return nil
	}
	if email.To == "" {
		m.logger.Debug("proposal mailer skipped, lead has no email", "proposal_id", email.ProposalID)
		return nil
	}

	body := fmt.Sprintf("Hi %s,\n\nYour treatment proposal %q is ready for review (total %.2f).",
		email.ToName, email.Title, email.TotalValue)
	if m.baseURL != "" {
		body += fmt.Sprintf("\n\nView it here: %s/sales/proposals/%s", m.baseURL, email.ProposalID)
	}
	if email.ValidUntil != nil {
		body += fmt.Sprintf("\n\nThis proposal is valid until %s.", email.ValidUntil.Format("January 2, 2006"))
	}

	return m.sender.Send(ctx, EmailMessage{
		To:      email.To,
		ToName:  email.ToName,
		Subject: fmt.Sprintf("Your proposal: %s", email.Title),
		Body:    body,
	})
}
