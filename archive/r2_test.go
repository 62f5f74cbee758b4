package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestR2Config_Enabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{AccountID: "acc"}.Enabled())
	assert.True(t, R2Config{AccountID: "acc", Bucket: "snapshots"}.Enabled())
}

func TestNewR2_RequiresBucket(t *testing.T) {
	_, err := NewR2(context.Background(), R2Config{AccountID: "acc"})
	require.Error(t, err)
}

func TestR2_Archive(t *testing.T) {
	putter := &fakePutter{}
	r := newR2(putter, R2Config{AccountID: "acc", Bucket: "snapshots"})

	loc, err := r.Archive(context.Background(), "/snapshots/a.json", []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, "https://acc.r2.cloudflarestorage.com/snapshots/snapshots/a.json", loc)
	assert.Equal(t, "snapshots", aws.ToString(putter.in.Bucket))
	assert.Equal(t, "snapshots/a.json", aws.ToString(putter.in.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.in.ContentType))
	assert.JSONEq(t, `{"ok":true}`, string(putter.body))
}

func TestR2_ArchiveUsesBaseURL(t *testing.T) {
	r := newR2(&fakePutter{}, R2Config{AccountID: "acc", Bucket: "b", BaseURL: "https://cdn.example.com/"})

	loc, err := r.Archive(context.Background(), "k.json", nil, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/k.json", loc)
}

func TestR2_ArchiveErrors(t *testing.T) {
	r := newR2(&fakePutter{err: errors.New("boom")}, R2Config{AccountID: "acc", Bucket: "b"})

	_, err := r.Archive(context.Background(), "k.json", nil, "application/json")
	require.ErrorContains(t, err, "boom")

	_, err = r.Archive(context.Background(), "", nil, "application/json")
	require.Error(t, err)
}
