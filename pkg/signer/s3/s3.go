// Package s3 signs object URLs for Amazon S3 and S3-compatible services.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/stefando/s3router/pkg/signer"
)

// DefaultRegion is used when neither the config nor the environment name one.
const DefaultRegion = "us-east-1"

// Config options for the S3 signer. Empty fields fall back to the AWS default
// credential chain and shared configuration.
type Config struct {
	Region           string
	SignatureVersion string // "", "v4" or "s3v4"
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Endpoint         string // custom endpoint for S3-compatible services
	ForcePathStyle   bool

	// RoleARN, when set, makes the signer assume this role and sign with the
	// temporary credentials.
	RoleARN         string
	RoleSessionName string
	RoleDuration    int32 // seconds, default MinSessionDuration
}

// Signer presigns S3 requests. It is safe for concurrent use.
type Signer struct {
	presignClient *s3.PresignClient
}

var _ signer.Signer = (*Signer)(nil)

var (
	// ErrUnsupportedSignatureVersion is returned for signature versions other than SigV4.
	ErrUnsupportedSignatureVersion = errors.New("unsupported signature version")

	// ErrIncompleteCredentials is returned when only one of AccessKeyID and
	// SecretAccessKey is set.
	ErrIncompleteCredentials = errors.New("access key ID and secret access key must be set together")
)

// New loads AWS configuration and creates a signer from it. Settings left
// empty are resolved by the AWS default chain, which reads AWS_* environment
// variables and the shared config files.
func New(ctx context.Context, cfg Config) (*Signer, error) {
	switch strings.ToLower(cfg.SignatureVersion) {
	case "", "v4", "s3v4":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSignatureVersion, cfg.SignatureVersion)
	}

	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, ErrIncompleteCredentials
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	if cfg.RoleARN != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(&AssumeRoleProvider{
			Client:      sts.NewFromConfig(awsCfg),
			RoleARN:     cfg.RoleARN,
			SessionName: cfg.RoleSessionName,
			Duration:    cfg.RoleDuration,
		})
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewFromClient(client), nil
}

// NewFromClient wraps an already configured S3 client.
func NewFromClient(client *s3.Client) *Signer {
	return &Signer{presignClient: s3.NewPresignClient(client)}
}

// SignURL returns a presigned URL for the given operation.
func (s *Signer) SignURL(ctx context.Context, op signer.Operation, params signer.Params) (string, error) {
	withExpiry := func(opts *s3.PresignOptions) {
		if params.Expires > 0 {
			opts.Expires = params.Expires
		}
	}

	switch op {
	case signer.PutObject:
		input := &s3.PutObjectInput{
			Bucket: aws.String(params.Bucket),
			Key:    aws.String(params.Key),
		}
		if params.ContentType != "" {
			input.ContentType = aws.String(params.ContentType)
		}
		if params.ACL != "" {
			input.ACL = types.ObjectCannedACL(params.ACL)
		}

		req, err := s.presignClient.PresignPutObject(ctx, input, withExpiry)
		if err != nil {
			return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
		}
		return req.URL, nil

	case signer.GetObject:
		req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(params.Bucket),
			Key:    aws.String(params.Key),
		}, withExpiry)
		if err != nil {
			return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
		}
		return req.URL, nil
	}

	return "", fmt.Errorf("unsupported operation: %q", op)
}
