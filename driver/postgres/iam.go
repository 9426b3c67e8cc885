package postgres

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5"
)

// iamBeforeConnect returns a pgx BeforeConnect hook that swaps the DSN
// password for a short-lived RDS IAM auth token. Tokens expire after 15
// minutes, so the hook rebuilds one for every new pooled connection.
func iamBeforeConnect(cfg Config) (func(ctx context.Context, cc *pgx.ConnConfig) error, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("IAM auth requires a region")
	}

	var creds aws.CredentialsProvider
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	return func(ctx context.Context, cc *pgx.ConnConfig) error {
		provider := creds
		if provider == nil {
			awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			provider = awscfg.Credentials
		}
		endpoint := fmt.Sprintf("%s:%d", cc.Host, cc.Port)
		token, err := auth.BuildAuthToken(ctx, endpoint, cfg.Region, cc.User, provider)
		if err != nil {
			return fmt.Errorf("build RDS auth token: %w", err)
		}
		cc.Password = token
		return nil
	}, nil
}
