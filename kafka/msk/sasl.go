package msk

import (
	"context"

	"github.com/Skyrin/go-migrate/e"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/aws_msk_iam_v2"
)

const (
	ECode080101 = e.Code0801 + "01"
	ECode080102 = e.Code0801 + "02"
)

// SASLMechanismConfig configuration options for NewSASLMechanism
type SASLMechanismConfig struct {
	Region string
	// EC2Role uses the instance role instead of the default credential chain
	EC2Role bool
}

// NewSASLMechanism returns an MSK IAM SASL mechanism
func NewSASLMechanism(ctx context.Context, c SASLMechanismConfig) (sm sasl.Mechanism, err error) {
	if c.Region == "" {
		return nil, e.N(ECode080101, "region not specified")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(c.Region))
	if err != nil {
		return nil, e.W(err, ECode080102)
	}
	if c.EC2Role {
		cfg.Credentials = aws.NewCredentialsCache(ec2rolecreds.New())
	}

	return aws_msk_iam_v2.NewMechanism(cfg), nil
}
