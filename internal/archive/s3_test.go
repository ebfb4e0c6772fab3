package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key string
	body        []byte
	size        int64
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	f.size = aws.ToInt64(in.ContentLength)
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, "media/alice/videos/a_1.mp4", Key("/media/", filepath.Join("alice", "videos", "a_1.mp4")))
	assert.Equal(t, "alice/images/b_2.jpg", Key("", "alice/images/b_2.jpg"))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestNew_AppliesRegionEndpointAndCredentials(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew
	})

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(_ context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{}, nil
	}
	var so s3.Options
	newS3ClientFromConfig = func(_ aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&so)
		}
		return &s3.Client{}
	}

	a, err := New(context.Background(), Config{
		Bucket:       "archive",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, "us-east-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)

	require.NotNil(t, so.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *so.BaseEndpoint)
	assert.True(t, so.UsePathStyle)
}

func TestNew_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := New(context.Background(), Config{Bucket: "b"}, nil)
	assert.ErrorContains(t, err, "no config")
}

func TestArchive_UploadsFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "a_1.mp4")
	require.NoError(t, os.WriteFile(local, []byte("video bytes"), 0o644))

	p := &fakePutter{}
	a := &S3Archiver{bucket: "archive", prefix: "runs", client: p, log: logging.Discard()}

	require.NoError(t, a.Archive(context.Background(), local, "alice/videos/a_1.mp4"))
	assert.Equal(t, "archive", p.bucket)
	assert.Equal(t, "runs/alice/videos/a_1.mp4", p.key)
	assert.Equal(t, []byte("video bytes"), p.body)
	assert.EqualValues(t, len("video bytes"), p.size)
}

func TestArchive_Errors(t *testing.T) {
	a := &S3Archiver{bucket: "archive", client: &fakePutter{err: errors.New("denied")}, log: logging.Discard()}

	err := a.Archive(context.Background(), filepath.Join(t.TempDir(), "missing"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)

	local := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	err = a.Archive(context.Background(), local, "u/f")
	assert.ErrorContains(t, err, "put s3://archive/u/f")
	assert.ErrorContains(t, err, "denied")
}
