// Package client builds the AWS service clients the alarm manager talks to.
// Every client comes from the same aws.Config, so middleware registered there
// (tracing, retries) applies to all of them.
package client

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Clients bundles the service clients used across a run. Consumers depend on
// narrow interfaces; this struct only wires the concrete clients together.
type Clients struct {
	CloudWatch  *cloudwatch.Client
	EC2         *ec2.Client
	RDS         *rds.Client
	ELB         *elbv2.Client
	Tagging     *resourcegroupstaggingapi.Client
	SNS         *sns.Client
	EventBridge *eventbridge.Client
}

// New creates all service clients from one shared configuration.
func New(cfg aws.Config) *Clients {
	return &Clients{
		CloudWatch:  cloudwatch.NewFromConfig(cfg),
		EC2:         ec2.NewFromConfig(cfg),
		RDS:         rds.NewFromConfig(cfg),
		ELB:         elbv2.NewFromConfig(cfg),
		Tagging:     resourcegroupstaggingapi.NewFromConfig(cfg),
		SNS:         sns.NewFromConfig(cfg),
		EventBridge: eventbridge.NewFromConfig(cfg),
	}
}
