// Package blob stores uploaded files such as product images and payment proofs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// Containers accepted by Upload.
const (
	PaymentProofs = "payment-proofs"
	ProductImages = "product-images"
)

var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrInvalidName      = errors.New("invalid file name")
	ErrEmpty            = errors.New("empty upload")
	ErrNotFound         = errors.New("blob not found")
)

// Storage uploads bytes and hands back a reference string.
type Storage interface {
	Upload(ctx context.Context, container, name string, data []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
}

// Containers lists the accepted container names.
func Containers() []string {
	return []string{PaymentProofs, ProductImages}
}

// FS keeps blobs as files below a root directory of an afero filesystem.
type FS struct {
	fs afero.Fs
}

var _ Storage = (*FS)(nil)

// NewFS roots fsys at root. Pass afero.NewMemMapFs() in tests.
func NewFS(fsys afero.Fs, root string) *FS {
	if root != "" {
		fsys = afero.NewBasePathFs(fsys, root)
	}
	return &FS{fs: fsys}
}

// NewOS stores blobs on the local disk below root.
func NewOS(root string) *FS {
	return NewFS(afero.NewOsFs(), root)
}

// Upload writes data as <container>/<uuid>-<name> and returns that path as the reference.
func (s *FS) Upload(ctx context.Context, container, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !lo.Contains(Containers(), container) {
		return "", fmt.Errorf("%w: %q", ErrUnknownContainer, container)
	}
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if strings.TrimSpace(name) == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if err := s.fs.MkdirAll(container, 0o755); err != nil {
		return "", fmt.Errorf("create container %s: %w", container, err)
	}
	ref := path.Join(container, uuid.NewString()+"-"+base)
	if err := afero.WriteFile(s.fs, ref, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

func (s *FS) Open(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	container, _, ok := strings.Cut(ref, "/")
	if !ok || !lo.Contains(Containers(), container) || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	data, err := afero.ReadFile(s.fs, ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return data, err
}
