package report

import (
	"context"
	"fmt"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/client"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// Sender publishes a run summary. Implementations must not fail the run they
// report on; callers log errors and move on.
type Sender interface {
	Send(ctx context.Context, summary *Summary) error
}

// NopSender drops summaries. Used when reporting is disabled.
type NopSender struct{}

func (s *NopSender) Send(_ context.Context, _ *Summary) error {
	return nil
}

// NewSender creates and returns the appropriate Sender implementation based
// on the report target specified in the settings.
func NewSender(clients *client.Clients, settings *config.Settings) (Sender, error) {
	switch settings.ReportTarget {
	case config.ReportNone:
		return &NopSender{}, nil

	case config.ReportSNS:
		return NewSNSSender(clients.SNS, settings.ReportTopicARN), nil

	case config.ReportEventBridge:
		return NewEventBridgeSender(clients.EventBridge, settings.ReportEventBus), nil

	default:
		return nil, fmt.Errorf("unknown report target: %s", settings.ReportTarget)
	}
}
