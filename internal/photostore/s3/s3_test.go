package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/photostore"
)

type object struct {
	data        []byte
	contentType string
}

// fakeClient is an in-memory bucket. Multipart calls are never needed for
// test-sized payloads.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string]object
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]object)}
}

func (f *fakeClient) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = object{data: data, contentType: aws.ToString(in.ContentType)}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: aws.String(obj.contentType),
	}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) UploadPart(context.Context, *awss3.UploadPartInput, ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeClient) CreateMultipartUpload(context.Context, *awss3.CreateMultipartUploadInput, ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeClient) CompleteMultipartUpload(context.Context, *awss3.CompleteMultipartUploadInput, ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported by fake")
}

func (f *fakeClient) AbortMultipartUpload(context.Context, *awss3.AbortMultipartUploadInput, ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	return &awss3.AbortMultipartUploadOutput{}, nil
}

func TestS3PhotoStoreSaveAndGet(t *testing.T) {
	client := newFakeClient()
	store := NewWithClient(client, "kiosk-photos", "installs")
	ctx := context.Background()

	key, err := store.Save(ctx, "after", "image/jpeg", bytes.NewReader([]byte("jpeg bytes")))
	require.NoError(t, err)

	_, stored := client.objects["kiosk-photos/installs/"+key]
	assert.True(t, stored, "object is written under the configured prefix")

	data, mimeType, err := photostore.ReadAll(ctx, store, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestS3PhotoStoreGetMissing(t *testing.T) {
	store := NewWithClient(newFakeClient(), "kiosk-photos", "")

	_, _, err := store.Get(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestS3PhotoStoreDelete(t *testing.T) {
	store := NewWithClient(newFakeClient(), "kiosk-photos", "")
	ctx := context.Background()

	key, err := store.Save(ctx, "before", "image/jpeg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestS3PhotoStoreUploadError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("access denied")
	store := NewWithClient(client, "kiosk-photos", "")

	_, err := store.Save(context.Background(), "before", "image/jpeg", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{Region: "us-east-1"})
	assert.Error(t, err)
}
