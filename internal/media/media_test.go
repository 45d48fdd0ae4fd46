package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var pngURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

func TestDecodeDataURI(t *testing.T) {
	img, err := DecodeDataURI(pngURI)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Ext != "png" || img.ContentType != "image/png" || string(img.Data) != "\x89PNG fake" {
		t.Fatalf("unexpected image: %+v", img)
	}

	jpeg, err := DecodeDataURI("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("x")))
	if err != nil || jpeg.Ext != "jpg" {
		t.Fatalf("expected jpg ext, got %+v %v", jpeg, err)
	}

	for _, bad := range []string{"", "hello", "data:text/plain;base64,aGk=", "data:image/png;base64,!!!", "data:image/png;base64,"} {
		if _, err := DecodeDataURI(bad); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("DecodeDataURI(%q) = %v, want ErrInvalidImage", bad, err)
		}
	}
}

func TestFSStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root, "/media/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	key, err := SaveDataURI(ctx, store, RecipeImagesDir, pngURI)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(key, "recipes/images/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(key))); err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if got := store.URL(key); got != "/media/"+key {
		t.Fatalf("URL = %q", got)
	}
	if store.URL("") != "" {
		t.Fatal("empty key should have empty URL")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if err := store.Save(ctx, "../escape.png", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	delete *s3.DeleteObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delete = in
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3Store(fake, "bucket", "https://cdn.example.com")
	ctx := context.Background()

	key, err := SaveDataURI(ctx, store, AvatarsDir, pngURI)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if aws.ToString(fake.put.Bucket) != "bucket" || aws.ToString(fake.put.Key) != key {
		t.Fatalf("unexpected put input: %+v", fake.put)
	}
	if aws.ToString(fake.put.ContentType) != "image/png" {
		t.Fatalf("content type = %q", aws.ToString(fake.put.ContentType))
	}
	if got := store.URL(key); got != "https://cdn.example.com/"+key {
		t.Fatalf("URL = %q", got)
	}
	if err := store.Delete(ctx, key); err != nil || aws.ToString(fake.delete.Key) != key {
		t.Fatalf("delete: %v %+v", err, fake.delete)
	}
}

func TestBackendType(t *testing.T) {
	if !FSBackend.IsValid() || !S3Backend.IsValid() || BackendType("ftp").IsValid() {
		t.Fatal("unexpected IsValid results")
	}
	if _, err := NewStore(context.Background(), Config{Backend: "ftp"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
