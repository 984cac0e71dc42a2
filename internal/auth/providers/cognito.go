package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/estateportal/pkg/crypto"
)

// CognitoConfig points the store at an AWS Cognito user pool.
type CognitoConfig struct {
	Region     string `mapstructure:"region"`
	UserPoolID string `mapstructure:"user_pool_id"`
	ClientID   string `mapstructure:"client_id"`
	// Endpoint overrides the service endpoint, e.g. for cognito-local.
	Endpoint string `mapstructure:"endpoint"`
}

// IssuerURL is the OIDC issuer of the user pool's tokens.
func (c CognitoConfig) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

type cognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
}

// CognitoStore delegates identities to a Cognito user pool. Users are created
// with the admin API and a permanent password, so activation signs them in
// without a forced password change.
type CognitoStore struct {
	client   cognitoAPI
	cfg      CognitoConfig
	verifier TokenVerifier
}

// NewCognitoStore loads AWS credentials from the default chain. When verifier
// is nil, tokens are verified by calling GetUser.
func NewCognitoStore(ctx context.Context, cfg CognitoConfig, verifier TokenVerifier) (*CognitoStore, error) {
	if strings.TrimSpace(cfg.UserPoolID) == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("cognito store: user pool id and client id are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cognito store: load aws config: %w", err)
	}

	client := cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newCognitoStore(client, cfg, verifier), nil
}

func newCognitoStore(client cognitoAPI, cfg CognitoConfig, verifier TokenVerifier) *CognitoStore {
	return &CognitoStore{client: client, cfg: cfg, verifier: verifier}
}

func (s *CognitoStore) Name() string { return KindCognito }

func (s *CognitoStore) CreateUser(ctx context.Context, input CreateUserInput) (*Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("cognito store: email is required")
	}
	if len(input.Password) < crypto.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	if name := strings.TrimSpace(input.FullName); name != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(name)})
	}

	out, err := s.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(s.cfg.UserPoolID),
		Username:       aws.String(email),
		MessageAction:  types.MessageActionTypeSuppress,
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, mapCognitoError(err)
	}

	var sub string
	if out.User != nil {
		sub = attributeValue(out.User.Attributes, "sub")
	}
	if sub == "" {
		return nil, errors.New("cognito store: created user has no sub attribute")
	}

	_, err = s.client.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(s.cfg.UserPoolID),
		Username:   aws.String(email),
		Password:   aws.String(input.Password),
		Permanent:  true,
	})
	if err != nil {
		_ = s.DeleteUser(ctx, email)
		return nil, mapCognitoError(err)
	}

	return &Identity{UserID: sub, Email: email, FullName: strings.TrimSpace(input.FullName)}, nil
}

// DeleteUser accepts either the username or the sub of the identity.
func (s *CognitoStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.client.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(s.cfg.UserPoolID),
		Username:   aws.String(userID),
	})
	var notFound *types.UserNotFoundException
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func (s *CognitoStore) Login(ctx context.Context, input LoginInput) (*Tokens, *Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	out, err := s.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(s.cfg.ClientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": input.Password,
		},
	})
	if err != nil {
		return nil, nil, mapCognitoError(err)
	}
	tokens, err := tokensFromAuthResult(out)
	if err != nil {
		return nil, nil, err
	}

	identity, err := s.VerifyToken(ctx, tokens.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return tokens, identity, nil
}

func (s *CognitoStore) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	out, err := s.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(s.cfg.ClientID),
		AuthParameters: map[string]string{"REFRESH_TOKEN": refreshToken},
	})
	if err != nil {
		if errors.Is(mapCognitoError(err), ErrInvalidCredentials) {
			return nil, ErrInvalidToken
		}
		return nil, mapCognitoError(err)
	}
	tokens, err := tokensFromAuthResult(out)
	if err != nil {
		return nil, err
	}
	// Cognito does not rotate refresh tokens by default.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (s *CognitoStore) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	if s.verifier != nil {
		return s.verifier.VerifyToken(ctx, token)
	}

	out, err := s.client.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(token)})
	if err != nil {
		mapped := mapCognitoError(err)
		if errors.Is(mapped, ErrInvalidCredentials) {
			return nil, ErrInvalidToken
		}
		return nil, mapped
	}

	identity := &Identity{
		UserID:    attributeValue(out.UserAttributes, "sub"),
		Email:     attributeValue(out.UserAttributes, "email"),
		FullName:  attributeValue(out.UserAttributes, "name"),
		ExpiresAt: accessTokenExpiry(token),
	}
	if identity.UserID == "" {
		identity.UserID = aws.ToString(out.Username)
	}
	return identity, nil
}

// accessTokenExpiry reads exp from a token GetUser has already accepted. The
// signature is not checked again here.
func accessTokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func tokensFromAuthResult(out *cip.InitiateAuthOutput) (*Tokens, error) {
	if out == nil || out.AuthenticationResult == nil {
		challenge := ""
		if out != nil {
			challenge = string(out.ChallengeName)
		}
		return nil, fmt.Errorf("%w: cognito challenge %q", ErrUnsupported, challenge)
	}
	res := out.AuthenticationResult
	tokenType := aws.ToString(res.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		TokenType:    tokenType,
		ExpiresIn:    secondsDuration(res.ExpiresIn),
	}, nil
}

func mapCognitoError(err error) error {
	var (
		exists       *types.UsernameExistsException
		badPassword  *types.InvalidPasswordException
		notAuthed    *types.NotAuthorizedException
		userNotFound *types.UserNotFoundException
	)
	switch {
	case errors.As(err, &exists):
		return fmt.Errorf("%w: %s", ErrUserExists, aws.ToString(exists.Message))
	case errors.As(err, &badPassword):
		return fmt.Errorf("%w: %s", ErrWeakPassword, aws.ToString(badPassword.Message))
	case errors.As(err, &notAuthed), errors.As(err, &userNotFound):
		return ErrInvalidCredentials
	}
	return fmt.Errorf("cognito store: %w", err)
}

func attributeValue(attrs []types.AttributeType, name string) string {
	for _, attr := range attrs {
		if aws.ToString(attr.Name) == name {
			return aws.ToString(attr.Value)
		}
	}
	return ""
}

func secondsDuration(seconds int32) time.Duration {
	return time.Duration(seconds) * time.Second
}
