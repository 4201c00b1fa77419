// Package secrets retrieves startup credentials from an external secret
// store. The rest of the application only sees the Provider interface;
// which backend is used is a config decision made once at boot.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/linkforge/shortener/internal/errx"
)

// Provider resolves a named secret to its string value.
// Implementations should be safe for concurrent use.
type Provider interface {
	DatabasePassword(ctx context.Context, secretID string) (string, error)
}

/***************
 * Static (env) provider
 ***************/

type staticProvider struct {
	password string
}

// NewStatic returns a Provider that always yields the given password.
// Used when the password is supplied directly via the environment.
func NewStatic(password string) Provider {
	return &staticProvider{password: password}
}

func (p *staticProvider) DatabasePassword(_ context.Context, _ string) (string, error) {
	const op = "secrets.static.DatabasePassword"

	if p.password == "" {
		return "", errx.E(op, errx.Invalid, errors.New("no password configured"))
	}
	return p.password, nil
}

/***************
 * AWS Secrets Manager provider
 ***************/

// secretsManagerAPI abstracts the Secrets Manager client for testing.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type awsProvider struct {
	client secretsManagerAPI
}

// NewAWS returns a Provider backed by AWS Secrets Manager. The secret is
// expected to be a JSON document with a "password" field, the format the
// RDS credential rotation templates produce.
func NewAWS(ctx context.Context, region string) (Provider, error) {
	const op = "secrets.NewAWS"

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, fmt.Errorf("load aws config: %w", err))
	}

	return &awsProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (p *awsProvider) DatabasePassword(ctx context.Context, secretID string) (string, error) {
	const op = "secrets.aws.DatabasePassword"

	if secretID == "" {
		return "", errx.E(op, errx.Invalid, errors.New("secret ID cannot be empty"))
	}

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", errx.E(op, errx.Unavailable, fmt.Errorf("get secret value: %w", err))
	}
	if out.SecretString == nil {
		return "", errx.E(op, errx.Invalid, errors.New("secret has no string value"))
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return "", errx.E(op, errx.Invalid, fmt.Errorf("decode secret payload: %w", err))
	}
	if payload.Password == "" {
		return "", errx.E(op, errx.Invalid, errors.New("secret payload has no password field"))
	}

	return payload.Password, nil
}
