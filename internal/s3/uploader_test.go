package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestUploadFile(t *testing.T) {
	fake := &fakeS3{}
	u := &Uploader{Client: fake, Bucket: "photos", Region: "ap-south-1"}

	url, err := u.UploadFile(context.Background(), strings.NewReader("img"), "profiles/a.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.s3.ap-south-1.amazonaws.com/profiles/a.png", url)
	assert.Equal(t, "photos", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))
	assert.Equal(t, "img", fake.body)

	u.CloudFrontDomain = "cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/k", u.ObjectURL("k"))

	fake.err = errors.New("denied")
	_, err = u.UploadFile(context.Background(), strings.NewReader("img"), "k", "")
	assert.Error(t, err)
	assert.Equal(t, "application/octet-stream", aws.ToString(fake.input.ContentType))
}

func TestProfilePhotoKey(t *testing.T) {
	k := ProfilePhotoKey("Me.JPG")
	assert.True(t, strings.HasPrefix(k, "profiles/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))
	assert.NotEqual(t, k, ProfilePhotoKey("Me.JPG"))
}
