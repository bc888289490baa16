package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// MinSessionDuration is the minimum duration for AWS STS AssumeRole (15 minutes)
	MinSessionDuration = 900 // seconds

	defaultSessionPrefix = "s3router"
)

// AssumeRoleAPI is the subset of the STS client used to assume a role.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AssumeRoleProvider retrieves temporary credentials by assuming RoleARN.
// Wrap it in aws.NewCredentialsCache so STS is only called on expiry.
type AssumeRoleProvider struct {
	Client      AssumeRoleAPI
	RoleARN     string
	SessionName string
	Duration    int32 // seconds
}

// Retrieve implements the aws.CredentialsProvider interface
func (p *AssumeRoleProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	if p.RoleARN == "" {
		return aws.Credentials{}, errors.New("role ARN cannot be empty")
	}

	sessionName := p.SessionName
	if sessionName == "" {
		sessionName = fmt.Sprintf("%s-%d", defaultSessionPrefix, time.Now().Unix())
	}
	duration := p.Duration
	if duration < MinSessionDuration {
		duration = MinSessionDuration
	}

	out, err := p.Client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(duration),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to assume role %s: %w", p.RoleARN, err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("assume role %s returned no credentials", p.RoleARN)
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "AssumeRoleProvider",
	}
	if out.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *out.Credentials.Expiration
	}
	return creds, nil
}
