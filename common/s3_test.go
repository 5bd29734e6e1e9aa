package common

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory bucket that pages listings two keys at a time
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "missing"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3PutGetExists(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := &S3{client: fake, bucket: "backups"}

	if err := s.Put(ctx, "articles/a.json", strings.NewReader(`{"slug":"a"}`), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if fake.types["articles/a.json"] != "application/json" {
		t.Errorf("content type = %q", fake.types["articles/a.json"])
	}

	rc, err := s.Get(ctx, "articles/a.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"slug":"a"}` {
		t.Errorf("body = %q", data)
	}

	if ok, err := s.Exists(ctx, "articles/a.json"); err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v", ok, err)
	}
	if ok, err := s.Exists(ctx, "articles/missing.json"); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}

	_, err = s.Get(ctx, "articles/missing.json")
	if !IsNotFound(err) {
		t.Errorf("Get(missing) err = %v, want not found", err)
	}

	if err := s.Delete(ctx, "articles/a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "articles/a.json"); ok {
		t.Error("object still exists after Delete")
	}
}

func TestS3ListFollowsContinuation(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := &S3{client: fake, bucket: "backups"}

	for _, k := range []string{"blog/articles/a.json", "blog/articles/b.json", "blog/articles/c.json", "blog/index.json", "other/x.json"} {
		if err := s.Put(ctx, k, strings.NewReader("{}"), ""); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.List(ctx, "blog/articles/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := strings.Join(keys, ","); got != "blog/articles/a.json,blog/articles/b.json,blog/articles/c.json" {
		t.Errorf("keys = %s", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if IsNotFound(errors.New("boom")) {
		t.Error("plain error reported as not found")
	}
	if !IsNotFound(&smithy.GenericAPIError{Code: "NotFound"}) {
		t.Error("NotFound code not recognised")
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
