package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "job/image.png", want: "job/image.png"},
		{in: "/job//image.png", want: "job/image.png"},
		{in: `job\mask.png`, want: "job/mask.png"},
		{in: "./job/a/../image.png", want: "job/image.png"},
		{in: "../escape.png", wantErr: true},
		{in: "..", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := sanitizeKey(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeKey(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFileStoreWriteOpenRemove(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	key, err := store.Write(context.Background(), "call-1/image.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}

	f, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "png-bytes" {
		t.Fatalf("read back %q", data)
	}

	if err := store.RemoveAll("call-1"); err != nil {
		t.Fatalf("RemoveAll error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "call-1")); !os.IsNotExist(err) {
		t.Fatalf("scratch directory still present: %v", err)
	}
	if err := store.RemoveAll("call-1"); err != nil {
		t.Fatalf("second RemoveAll should be a no-op: %v", err)
	}
}

func TestFileStoreWriteHonorsCancelledContext(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "a.png", []byte("x")); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
