// Package auth verifies bearer tokens against the Cognito user pool and
// enforces role-based access on top of the stored user profile.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/smithy-go"
	awsint "github.com/tesoroschoco/marketplace-api/internal/aws"
)

// ErrInvalidToken means the token was rejected by the identity provider.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is what the identity provider asserts about the caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier resolves access tokens through the Cognito GetUser API, so a
// revoked or expired token fails here rather than at a local signature check.
type Verifier struct {
	client awsint.CognitoAPI
}

func NewVerifier(client awsint.CognitoAPI) *Verifier {
	return &Verifier{client: client}
}

// Verify exchanges an access token for the caller's identity.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	out, err := v.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: &accessToken,
	})
	if err != nil {
		var api smithy.APIError
		if errors.As(err, &api) {
			switch api.ErrorCode() {
			case "NotAuthorizedException", "PasswordResetRequiredException", "UserNotConfirmedException", "UserNotFoundException":
				return nil, ErrInvalidToken
			}
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	id := &Identity{}
	for _, attr := range out.UserAttributes {
		if attr.Name == nil || attr.Value == nil {
			continue
		}
		switch *attr.Name {
		case "sub":
			id.UserID = *attr.Value
		case "email":
			id.Email = *attr.Value
		}
	}
	if id.UserID == "" {
		return nil, ErrInvalidToken
	}
	return id, nil
}
