package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = data
	if in.ContentType != nil {
		f.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3.example.com/" + *in.Key + "?signed"}, nil
}

func TestNewS3Store(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		region    string
		wantError bool
	}{
		{name: "valid bucket and region", bucket: "test-bucket", region: "us-east-1"},
		{name: "empty bucket", region: "us-east-1", wantError: true},
		{name: "empty region", bucket: "test-bucket", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewS3Store(context.Background(), tt.bucket, tt.region, "")
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.bucket != tt.bucket {
				t.Errorf("bucket mismatch: got %q, want %q", store.bucket, tt.bucket)
			}
			if store.presignExpiration != defaultPresignExpiration {
				t.Errorf("default presign expiration should be %v, got %v", defaultPresignExpiration, store.presignExpiration)
			}
		})
	}
}

func TestS3Store_SaveAndRead(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	signer := &fakePresigner{}
	store := newS3Store(client, signer, "shots", "/screenshots/")

	loc, err := store.Save(ctx, "run-1/home.png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if loc != "https://shots.s3.example.com/screenshots/run-1/home.png?signed" {
		t.Errorf("unexpected location %q", loc)
	}
	if signer.expires != defaultPresignExpiration {
		t.Errorf("presign expiry mismatch: got %v", signer.expires)
	}
	if got := client.types["screenshots/run-1/home.png"]; got != "image/png" {
		t.Errorf("content type mismatch: got %q", got)
	}

	exists, err := store.Exists(ctx, "run-1/home.png")
	if err != nil || !exists {
		t.Errorf("expected object to exist, got exists=%v err=%v", exists, err)
	}

	rc, err := store.Open(ctx, "run-1/home.png")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png" {
		t.Errorf("content mismatch: got %q", data)
	}

	again, err := store.Location(ctx, "run-1/home.png")
	if err != nil || again != loc {
		t.Errorf("location mismatch: got %q err=%v", again, err)
	}
}

func TestS3Store_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newS3Store(newFakeS3(), &fakePresigner{}, "shots", "")

	if _, err := store.Open(ctx, "missing.png"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
	if _, err := store.Location(ctx, "missing.png"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
	exists, err := store.Exists(ctx, "missing.png")
	if err != nil || exists {
		t.Errorf("expected missing object, got exists=%v err=%v", exists, err)
	}
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	client.err = &smithy.GenericAPIError{Code: "AccessDenied"}
	store := newS3Store(client, &fakePresigner{}, "shots", "")

	if _, err := store.Save(ctx, "a.png", strings.NewReader("x")); err == nil {
		t.Error("expected save error")
	}
	if _, err := store.Exists(ctx, "a.png"); err == nil {
		t.Error("expected exists error")
	}
	if _, err := store.Save(ctx, "../a.png", strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "shot.png"},
		{path: "run/shot.png"},
		{path: "", wantErr: true},
		{path: "../shot.png", wantErr: true},
		{path: "./", wantErr: true},
		{path: "/abs/shot.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr != (err != nil) {
				t.Errorf("validatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestIsS3NotFoundError(t *testing.T) {
	if !isS3NotFoundError(&smithy.GenericAPIError{Code: "NoSuchKey"}) {
		t.Error("NoSuchKey should be not found")
	}
	if !isS3NotFoundError(&smithy.GenericAPIError{Code: "NotFound"}) {
		t.Error("NotFound should be not found")
	}
	if isS3NotFoundError(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Error("AccessDenied should not be not found")
	}
	if isS3NotFoundError(errors.New("plain")) {
		t.Error("plain errors should not be not found")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		opts      Options
		wantType  string
		wantError bool
	}{
		{name: "default is local", opts: Options{Dir: t.TempDir()}, wantType: "local"},
		{name: "local uppercase", opts: Options{Kind: "LOCAL", Dir: t.TempDir()}, wantType: "local"},
		{name: "s3", opts: Options{Kind: "s3", Bucket: "b", Region: "us-east-1", Prefix: "shots", PresignExpiry: time.Hour}, wantType: "s3"},
		{name: "s3 without bucket", opts: Options{Kind: "s3", Region: "us-east-1"}, wantError: true},
		{name: "unknown", opts: Options{Kind: "ftp"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.opts)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch s := store.(type) {
			case *LocalStore:
				if tt.wantType != "local" {
					t.Errorf("got local store, want %s", tt.wantType)
				}
			case *S3Store:
				if tt.wantType != "s3" {
					t.Errorf("got s3 store, want %s", tt.wantType)
				}
				if s.presignExpiration != tt.opts.PresignExpiry {
					t.Errorf("presign expiry mismatch: got %v", s.presignExpiration)
				}
				if s.prefix != tt.opts.Prefix {
					t.Errorf("prefix mismatch: got %q", s.prefix)
				}
			default:
				t.Errorf("unexpected store type %T", store)
			}
		})
	}
}
