package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

// CognitoClient is the subset of the Cognito IDP API the fetcher needs.
type CognitoClient interface {
	ListUsers(ctx context.Context, params *cognitoidentityprovider.ListUsersInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUsersOutput, error)
}

// CognitoFetcher resolves user attributes from a Cognito user pool.
type CognitoFetcher struct {
	client     CognitoClient
	userPoolID string
	logger     *zap.Logger
}

// NewCognitoFetcher builds a fetcher bound to one user pool.
func NewCognitoFetcher(client CognitoClient, userPoolID string, logger *zap.Logger) *CognitoFetcher {
	return &CognitoFetcher{client: client, userPoolID: userPoolID, logger: logger}
}

// Fetch looks up the user by sub and returns the normalized attribute set.
func (f *CognitoFetcher) Fetch(ctx context.Context, userID string) (domain.AttributeSet, error) {
	if userID == "" {
		return nil, util.NewInvalidIdentity("")
	}
	if f.userPoolID == "" {
		return nil, util.NewProviderError(errors.New("user pool id not configured"))
	}

	out, err := f.client.ListUsers(ctx, &cognitoidentityprovider.ListUsersInput{
		UserPoolId: aws.String(f.userPoolID),
		Filter:     aws.String(fmt.Sprintf("sub = %q", userID)),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return nil, f.mapError(userID, err)
	}
	if len(out.Users) == 0 {
		return nil, util.NewIdentityNotFound(userID)
	}

	attrs := normalizeUserAttributes(out.Users[0])
	f.logger.Debug("fetched user attributes",
		zap.String("user_pool_id", f.userPoolID),
		zap.Int("attribute_count", len(attrs)))
	return attrs, nil
}

func (f *CognitoFetcher) mapError(userID string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.(type) {
		case *types.UserNotFoundException:
			return util.NewIdentityNotFound(userID)
		case *types.TooManyRequestsException, *types.InternalErrorException:
			return util.NewProviderUnavailable(err)
		default:
			return util.NewProviderError(err)
		}
	}
	// Transport-level failures (timeouts, refused connections, cancelled
	// contexts) are transient from the caller's point of view.
	return util.NewProviderUnavailable(err)
}

// normalizeUserAttributes flattens the provider's user model into a plain
// attribute map, folding in the account-level fields beside the declared
// attributes.
func normalizeUserAttributes(user types.UserType) domain.AttributeSet {
	attrs := domain.AttributeSet{
		"enabled": strconv.FormatBool(user.Enabled),
	}
	if user.UserStatus != "" {
		attrs["user_status"] = string(user.UserStatus)
	}
	if user.UserCreateDate != nil {
		attrs["user_create_date"] = formatEpochSeconds(user.UserCreateDate.UnixMilli())
	}
	if user.UserLastModifiedDate != nil {
		attrs["user_last_modified_date"] = formatEpochSeconds(user.UserLastModifiedDate.UnixMilli())
	}
	for _, attr := range user.Attributes {
		if attr.Name == nil {
			continue
		}
		attrs[*attr.Name] = aws.ToString(attr.Value)
	}
	return attrs
}

func formatEpochSeconds(millis int64) string {
	return strconv.FormatFloat(float64(millis)/1000, 'f', -1, 64)
}
