package identity

import (
	"regexp"
	"strings"

	"github.com/spec-kit/token-service/pkg/util"
)

var (
	poolIDPattern   = regexp.MustCompile(`([a-z]{2}-[a-z]+-\d+_[0-9A-Za-z]+)`)
	signInPattern   = regexp.MustCompile(`CognitoSignIn:([0-9a-fA-F-]{36})`)
	roleNamePattern = regexp.MustCompile(`assumed-role/([^/]+)/`)
)

// PoolIdentity names a user inside a specific user pool.
type PoolIdentity struct {
	UserPoolID string
	Sub        string
}

// ParseAuthenticationProvider extracts the user pool id and subject from a
// Cognito authentication-provider descriptor, e.g.
// "cognito-idp.eu-west-1.amazonaws.com/eu-west-1_Abc123,...:CognitoSignIn:<sub>".
func ParseAuthenticationProvider(provider string) (PoolIdentity, error) {
	pool := poolIDPattern.FindString(provider)
	if pool == "" {
		return PoolIdentity{}, util.NewInvalidIdentity("authentication provider missing user pool id")
	}
	sub := signInPattern.FindStringSubmatch(provider)
	if sub == nil {
		return PoolIdentity{}, util.NewInvalidIdentity("authentication provider missing subject")
	}
	return PoolIdentity{UserPoolID: pool, Sub: sub[1]}, nil
}

// IsAuthenticationProvider reports whether the identity string looks like a
// full provider descriptor rather than a bare subject.
func IsAuthenticationProvider(identity string) bool {
	return strings.Contains(identity, "CognitoSignIn:")
}

// ExtractRoleName pulls the role out of an assumed-role ARN. Returns an
// empty string when the ARN carries no assumed role.
func ExtractRoleName(userARN string) string {
	m := roleNamePattern.FindStringSubmatch(userARN)
	if m == nil {
		return ""
	}
	return m[1]
}
