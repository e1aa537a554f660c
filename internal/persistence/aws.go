package persistence

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/config"
)

// AWSClients bundles the SDK clients used by the service.
type AWSClients struct {
	DynamoDB *dynamodb.Client
	Cognito  *cognitoidentityprovider.Client
}

// NewAWSClients resolves shared AWS configuration once and builds the
// DynamoDB and Cognito clients from it. AWS_ENDPOINT_URL overrides the
// endpoint for local stacks.
func NewAWSClients(ctx context.Context, cfg config.AWSConfig, logger *zap.Logger) (*AWSClients, error) {
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	var dynamoOpts []func(*dynamodb.Options)
	var cognitoOpts []func(*cognitoidentityprovider.Options)
	if cfg.EndpointURL != "" {
		logger.Info("using custom aws endpoint", zap.String("endpoint", cfg.EndpointURL))
		dynamoOpts = append(dynamoOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
		cognitoOpts = append(cognitoOpts, func(o *cognitoidentityprovider.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	return &AWSClients{
		DynamoDB: dynamodb.NewFromConfig(sdkCfg, dynamoOpts...),
		Cognito:  cognitoidentityprovider.NewFromConfig(sdkCfg, cognitoOpts...),
	}, nil
}
