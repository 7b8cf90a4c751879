package report

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI defines the SNS operations required for sending summaries.
type SNSAPI interface {
	Publish(
		ctx context.Context,
		params *sns.PublishInput,
		optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes run summaries to an SNS topic as readable text.
type SNSSender struct {
	client   SNSAPI
	topicARN string
}

// NewSNSSender creates a new SNSSender instance.
func NewSNSSender(client SNSAPI, topicARN string) *SNSSender {
	return &SNSSender{
		client:   client,
		topicARN: topicARN,
	}
}

// Send publishes the summary to the configured topic.
func (s *SNSSender) Send(ctx context.Context, summary *Summary) error {
	formatter := &TextMessageFormatter{}
	msg, err := formatter.Format(summary)
	if err != nil {
		return err
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String("Alarm Run Summary - " + summary.LandingZone),
		Message:  aws.String(msg),
	}

	_, err = s.client.Publish(ctx, input)
	return err
}
