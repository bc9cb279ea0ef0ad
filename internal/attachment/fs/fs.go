// Package fs はローカルファイルシステムに添付ファイルを保存するBackendを提供する。
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/hitoshi/qaboard/internal/attachment"
)

// Backend はルートディレクトリ直下にオブジェクトをファイルとして保存する。
type Backend struct {
	root string
}

// New はルートディレクトリを作成してBackendを返す。
func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &Backend{root: root}, nil
}

// Root はルートディレクトリを返す。
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.root, filepath.Base(key))
}

// Put はO_EXCLでファイルを作成して内容を書き込む。
// 同名のファイルが存在する場合はattachment.ErrObjectExistsを返し、既存ファイルには触れない。
// 書き込みに失敗した場合は作成途中のファイルを削除する。
func (b *Backend) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := b.path(key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, iofs.ErrExist) {
		return attachment.ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Get はファイルを開いてサイズとともに返す。
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(b.path(key))
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, 0, attachment.ErrObjectNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return f, info.Size(), nil
}

// Delete はファイルを削除する。
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(b.path(key))
	if errors.Is(err, iofs.ErrNotExist) {
		return attachment.ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ attachment.Backend = (*Backend)(nil)
