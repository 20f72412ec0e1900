package objectstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_PutPresignRemove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "customers/c1/f1.jpg", strings.NewReader("jpegdata"), 8, "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ct, ok := s.Get("customers/c1/f1.jpg")
	if !ok || string(data) != "jpegdata" || ct != "image/jpeg" {
		t.Fatalf("Get = %q %q %v", data, ct, ok)
	}

	u, err := s.PresignGet(ctx, "customers/c1/f1.jpg", "before.jpg", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet: %v", err)
	}
	if !strings.HasPrefix(u, "memory://objects/customers/c1/f1.jpg?") || !strings.Contains(u, "filename=before.jpg") {
		t.Errorf("url = %s", u)
	}

	s.Remove(ctx, "customers/c1/f1.jpg")
	if _, err := s.PresignGet(ctx, "customers/c1/f1.jpg", "", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Errorf("after remove err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SizeMismatch(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), "k", strings.NewReader("short"), 10, "application/pdf"); err == nil {
		t.Error("expected error when reader is shorter than size")
	}
	if err := s.Put(context.Background(), "k", strings.NewReader("longer than four"), 4, "application/pdf"); err == nil {
		t.Error("expected error when reader is longer than size")
	}
}

// Runs against a real MinIO when CLINIC_TEST_MINIO_ENDPOINT is set.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("CLINIC_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("CLINIC_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := NewMinioStore(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("CLINIC_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("CLINIC_TEST_MINIO_SECRET_KEY"),
		Bucket:    "clinic-test",
	})
	if err != nil {
		t.Fatalf("NewMinioStore: %v", err)
	}
	key := "it/" + time.Now().Format("20060102150405.000000000") + ".pdf"
	if err := s.Put(ctx, key, strings.NewReader("%PDF-1.4"), 8, "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	defer s.Remove(ctx, key)
	u, err := s.PresignGet(ctx, key, "consent.pdf", time.Minute)
	if err != nil || !strings.Contains(u, "X-Amz-Signature") {
		t.Errorf("PresignGet = %s, %v", u, err)
	}
	if _, err := s.PresignGet(ctx, key+".missing", "", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key err = %v, want ErrNotFound", err)
	}
}
