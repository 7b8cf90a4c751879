package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.opentelemetry.io/otel/attribute"
)

// EventBridgeAPI defines the EventBridge operations required for sending
// summaries.
type EventBridgeAPI interface {
	PutEvents(
		ctx context.Context,
		params *eventbridge.PutEventsInput,
		optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSender publishes run summaries to an EventBridge bus as JSON.
type EventBridgeSender struct {
	client   EventBridgeAPI
	eventBus string
}

// NewEventBridgeSender creates a new EventBridgeSender instance.
func NewEventBridgeSender(client EventBridgeAPI, eventBus string) *EventBridgeSender {
	return &EventBridgeSender{
		client:   client,
		eventBus: eventBus,
	}
}

// Send publishes the summary to the configured event bus.
func (s *EventBridgeSender) Send(ctx context.Context, summary *Summary) error {
	ctx, span := tracer.Start(ctx, "report.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.landingZone", summary.LandingZone),
		attribute.String("report.action", summary.Action),
	)

	formatter := &JSONMessageFormatter{}
	msg, err := formatter.Format(summary)
	if err != nil {
		return fmt.Errorf("cannot format summary: %w", err)
	}

	params := &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			Detail:       aws.String(msg),
			DetailType:   aws.String("Alarm Run Summary"),
			EventBusName: aws.String(s.eventBus),
			Source:       aws.String("cloudwatch.alarm.manager"),
		}},
	}

	out, err := s.client.PutEvents(ctx, params)
	if err != nil {
		return fmt.Errorf("cannot put event to %q: %w", s.eventBus, err)
	}

	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		return fmt.Errorf("cannot put event to %q: %s - %s",
			s.eventBus, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}

	return nil
}
