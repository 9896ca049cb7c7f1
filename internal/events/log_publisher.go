package events

import (
	"context"

	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

// LogPublisher writes events to the structured log. Default transport for
// local development and tests.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("domain event",
		"event_id", event.ID,
		"kind", event.Kind,
		"proposal_id", event.Payload.ProposalID,
		"lead_id", event.Payload.LeadID,
		"new_status", event.Payload.NewStatus,
		"clinic_id", event.Context.ClinicID,
	)
	return nil
}
