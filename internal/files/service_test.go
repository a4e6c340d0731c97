package files

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestSpoolAndHashWithLimit(t *testing.T) {
	content := "clinical scan data"
	hash, size, tempPath, err := spoolAndHashWithLimit(strings.NewReader(content), 1024)
	if err != nil {
		t.Fatalf("spoolAndHashWithLimit() error = %v", err)
	}
	defer os.Remove(tempPath)

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	sum := sha256.Sum256([]byte(content))
	if want := hex.EncodeToString(sum[:]); hash != want {
		t.Errorf("hash = %q, want %q", hash, want)
	}
	data, err := os.ReadFile(tempPath)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if string(data) != content {
		t.Errorf("temp content = %q, want %q", data, content)
	}
}

func TestSpoolAndHashWithLimitTooLarge(t *testing.T) {
	_, _, _, err := spoolAndHashWithLimit(strings.NewReader("0123456789"), 5)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "first non-blank", values: []string{"", " ", "image/png", "text/plain"}, want: "image/png"},
		{name: "all blank", values: []string{"", "  "}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coalesce(tt.values...); got != tt.want {
				t.Errorf("coalesce(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}
