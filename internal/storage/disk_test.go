package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestDiskProviderRoundTrip(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())
	ctx := context.Background()

	if err := provider.Put(ctx, "ab/abcdef.bin", strings.NewReader("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reader, err := provider.Open(ctx, "ab/abcdef.bin")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("read = %q, want %q", data, "payload")
	}
}

func TestDiskProviderPutOverwrites(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())
	ctx := context.Background()

	if err := provider.Put(ctx, "cd/cdef.bin", strings.NewReader("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := provider.Put(ctx, "cd/cdef.bin", strings.NewReader("second")); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	reader, err := provider.Open(ctx, "cd/cdef.bin")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("read = %q, want %q", data, "second")
	}
}

func TestDiskProviderRejectsTraversal(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())
	ctx := context.Background()

	tests := []string{"../escape", "/abs/path", "a/../../b"}
	for _, key := range tests {
		if err := provider.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) should fail", key)
		}
		if _, err := provider.Open(ctx, key); err == nil {
			t.Errorf("Open(%q) should fail", key)
		}
	}
}
