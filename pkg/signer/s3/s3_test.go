package s3

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/s3router/pkg/signer"
)

func newTestSigner() *Signer {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("http://localhost:9000"),
		UsePathStyle: true,
	})
	return NewFromClient(client)
}

func TestSignURLPutObject(t *testing.T) {
	s := newTestSigner()

	raw, err := s.SignURL(context.Background(), signer.PutObject, signer.Params{
		Bucket:      "uploads",
		Key:         "up/a.png",
		Expires:     60 * time.Second,
		ContentType: "image/png",
		ACL:         "private",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/uploads/up/a.png", u.Path)

	q := u.Query()
	assert.Equal(t, "60", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIDEXAMPLE/"))
}

func TestSignURLGetObject(t *testing.T) {
	s := newTestSigner()

	raw, err := s.SignURL(context.Background(), signer.GetObject, signer.Params{
		Bucket:  "uploads",
		Key:     "a.png",
		Expires: 5 * time.Minute,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.png", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
}

func TestSignURLUnsupportedOperation(t *testing.T) {
	s := newTestSigner()

	_, err := s.SignURL(context.Background(), signer.Operation("deleteObject"), signer.Params{Bucket: "b", Key: "k"})
	assert.Error(t, err)
}

func TestNewRejectsSignatureVersion(t *testing.T) {
	_, err := New(context.Background(), Config{SignatureVersion: "v2"})
	assert.ErrorIs(t, err, ErrUnsupportedSignatureVersion)
}

func TestNewRejectsHalfCredentials(t *testing.T) {
	tests := map[string]Config{
		"key without secret": {Region: "us-east-1", AccessKeyID: "AKID"},
		"secret without key": {Region: "us-east-1", SecretAccessKey: "secret"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := New(context.Background(), cfg)
			assert.ErrorIs(t, err, ErrIncompleteCredentials)
			assert.Nil(t, s)
		})
	}
}

type fakeSTS struct {
	input *sts.AssumeRoleInput
	out   *sts.AssumeRoleOutput
	err   error
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestAssumeRoleProvider(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC()
	fake := &fakeSTS{out: &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("ASIA"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      aws.Time(expires),
		},
	}}

	p := &AssumeRoleProvider{Client: fake, RoleARN: "arn:aws:iam::123456789012:role/uploader", Duration: 60}
	creds, err := p.Retrieve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ASIA", creds.AccessKeyID)
	assert.Equal(t, "token", creds.SessionToken)
	assert.True(t, creds.CanExpire)
	assert.Equal(t, expires, creds.Expires)

	// durations below the STS minimum are raised
	assert.Equal(t, int32(MinSessionDuration), aws.ToInt32(fake.input.DurationSeconds))
	assert.True(t, strings.HasPrefix(aws.ToString(fake.input.RoleSessionName), "s3router-"))
}

func TestAssumeRoleProviderErrors(t *testing.T) {
	t.Run("empty role", func(t *testing.T) {
		p := &AssumeRoleProvider{Client: &fakeSTS{}}
		_, err := p.Retrieve(context.Background())
		assert.Error(t, err)
	})

	t.Run("sts failure", func(t *testing.T) {
		boom := errors.New("boom")
		p := &AssumeRoleProvider{Client: &fakeSTS{err: boom}, RoleARN: "arn:role"}
		_, err := p.Retrieve(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing credentials", func(t *testing.T) {
		p := &AssumeRoleProvider{Client: &fakeSTS{out: &sts.AssumeRoleOutput{}}, RoleARN: "arn:role"}
		_, err := p.Retrieve(context.Background())
		assert.Error(t, err)
	})
}
