package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hitoshi/qaboard/internal/attachment/fs"
	"github.com/hitoshi/qaboard/internal/attachment/s3"
)

func TestOpen_File(t *testing.T) {
	root := filepath.Join(t.TempDir(), "upload")
	b, err := Open(context.Background(), "file://"+root, Credentials{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	fsb, ok := b.(*fs.Backend)
	if !ok {
		t.Fatalf("backend type = %T, want *fs.Backend", b)
	}
	if fsb.Root() != root {
		t.Errorf("Root = %q, want %q", fsb.Root(), root)
	}
}

func TestOpen_S3(t *testing.T) {
	b, err := Open(context.Background(),
		"s3://attachments?region=ap-northeast-1&endpoint=http://localhost:9000&path_style=true",
		Credentials{AccessKeyID: "minio", SecretAccessKey: "minio123"},
	)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := b.(*s3.Backend); !ok {
		t.Errorf("backend type = %T, want *s3.Backend", b)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []string{
		"ftp://example.com/upload",
		"file://",
		"s3://",
		"://bad",
	}
	for _, u := range tests {
		if _, err := Open(context.Background(), u, Credentials{}); err == nil {
			t.Errorf("Open(%q) should fail", u)
		}
	}
}
