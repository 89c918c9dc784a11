// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"fmt"

	"bitwise74/smart-librarian/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
)

// LoadConfig builds the shared SDK config. Static keys win when set,
// otherwise the default credential chain is used.
func LoadConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}

	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}

	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID,
			c.SecretAccessKey,
			"",
		)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config, %w", err)
	}

	return cfg, nil
}

func NewPolly(cfg aws.Config) *polly.Client {
	return polly.NewFromConfig(cfg)
}
