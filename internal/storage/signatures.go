package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"placement/internal/common"
)

// MaxSignatureBytes caps a stored signature upload.
const MaxSignatureBytes = 2 << 20

var allowedExtensions = map[string]struct{}{".png": {}, ".jpg": {}, ".jpeg": {}, ".pdf": {}}

// LocalSignatureStore keeps signatures under root/<owner>/<uuid><ext>.
type LocalSignatureStore struct {
	root string
}

func NewLocalSignatureStore(root string) (*LocalSignatureStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create signature dir: %w", err)
	}
	return &LocalSignatureStore{root: root}, nil
}

// Save returns the stored path relative to the store root.
func (s *LocalSignatureStore) Save(ctx context.Context, owner common.UUID, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", common.NewValidationError("invalid signature", map[string]string{"signature": "signature must be png, jpg or pdf"})
	}
	ownerDir := filepath.Base(owner.String())
	if ownerDir == "." || ownerDir == string(filepath.Separator) || ownerDir == "" {
		return "", common.NewValidationError("invalid signature", map[string]string{"owner": "invalid owner"})
	}
	dir := filepath.Join(s.root, ownerDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store signature", err)
	}
	name := common.NewUUID().String() + ext
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store signature", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(content, MaxSignatureBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store signature", err)
	}
	if written == 0 {
		return "", common.NewValidationError("invalid signature", map[string]string{"signature": "signature is empty"})
	}
	if written > MaxSignatureBytes {
		return "", common.NewValidationError("invalid signature", map[string]string{"signature": "signature is too large"})
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store signature", err)
	}
	return filepath.ToSlash(filepath.Join(ownerDir, name)), nil
}
