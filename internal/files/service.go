package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// PictureStore persists which upload belongs to which user.
type PictureStore interface {
	GetPicturePath(ctx context.Context, userID string) (string, error)
	SetPicturePath(ctx context.Context, userID, name string) error
	ClearPicturePath(ctx context.Context, userID string) error
}

// Service manages profile pictures and receipt streaming on top of
// the path guard. Filesystem errors never reach callers verbatim.
type Service struct {
	guard  *Guard
	store  PictureStore
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(guard *Guard, store PictureStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, store: store, logger: logger}
}

// SaveProfilePicture stores a new picture for the user and repoints
// the record at it. The stored name is derived from the user id, never
// from the uploaded filename; only the extension survives. Replacement
// is write-then-repoint: a concurrent reader sees the old or the new
// file, never a partial one.
func (s *Service) SaveProfilePicture(ctx context.Context, userID, uploadName string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(uploadName))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return "", fmt.Errorf("files: unsupported picture type: %w", shared.ErrValidation)
	}

	name := userID + ext
	resolved, err := s.guard.Resolve(RootUploads, name)
	if err != nil {
		return "", err
	}

	previous, err := s.store.GetPicturePath(ctx, userID)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved.Path), ".upload-*")
	if err != nil {
		s.logger.Error("create upload temp", slog.Any("error", err))
		return "", shared.ErrNotFound
	}
	if _, err := io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.logger.Error("write upload", slog.Any("error", err))
		return "", shared.ErrNotFound
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("close upload", slog.Any("error", err))
		return "", shared.ErrNotFound
	}
	if err := os.Rename(tmp.Name(), resolved.Path); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("publish upload", slog.Any("error", err))
		return "", shared.ErrNotFound
	}

	if err := s.store.SetPicturePath(ctx, userID, name); err != nil {
		return "", err
	}

	// Removing the superseded file is best effort; the record already
	// points at the new one.
	if previous != "" && previous != name {
		s.removeStored(RootUploads, previous)
	}

	return name, nil
}

// OpenProfilePicture re-validates the stored name and opens the file
// for streaming. The caller owns the returned file handle.
func (s *Service) OpenProfilePicture(ctx context.Context, userID string) (*os.File, string, error) {
	name, err := s.store.GetPicturePath(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		return nil, "", shared.ErrNotFound
	}
	return s.open(RootUploads, name)
}

// DeleteProfilePicture clears the record and best-effort removes the
// file. A stubborn file on disk never fails the operation.
func (s *Service) DeleteProfilePicture(ctx context.Context, userID string) error {
	name, err := s.store.GetPicturePath(ctx, userID)
	if err != nil {
		return err
	}
	if name == "" {
		return shared.ErrNotFound
	}
	if err := s.store.ClearPicturePath(ctx, userID); err != nil {
		return err
	}
	s.removeStored(RootUploads, name)
	return nil
}

// OpenReceipt opens an invoice receipt PDF by its vetted filename.
func (s *Service) OpenReceipt(name string) (*os.File, string, error) {
	return s.open(RootInvoices, name)
}

// SaveReceipt writes a rendered receipt PDF under the invoices root.
// The name passes the same validation as at read time, and the write
// is temp-then-rename like picture uploads.
func (s *Service) SaveReceipt(name string, data []byte) error {
	resolved, err := s.guard.Resolve(RootInvoices, name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(resolved.Path), ".receipt-*")
	if err != nil {
		s.logger.Error("create receipt temp", slog.Any("error", err))
		return shared.ErrNotFound
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.logger.Error("write receipt", slog.Any("error", err))
		return shared.ErrNotFound
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("close receipt", slog.Any("error", err))
		return shared.ErrNotFound
	}
	if err := os.Rename(tmp.Name(), resolved.Path); err != nil {
		_ = os.Remove(tmp.Name())
		s.logger.Error("publish receipt", slog.Any("error", err))
		return shared.ErrNotFound
	}
	return nil
}

func (s *Service) open(root RootID, name string) (*os.File, string, error) {
	resolved, err := s.guard.Resolve(root, name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(resolved.Path)
	if err != nil {
		// The raw error may carry directory structure; log it and hand
		// the caller a generic not-found.
		s.logger.Warn("open confined file", slog.String("root", string(root)), slog.Any("error", err))
		return nil, "", shared.ErrNotFound
	}
	return f, resolved.ContentType, nil
}

func (s *Service) removeStored(root RootID, name string) {
	resolved, err := s.guard.Resolve(root, name)
	if err != nil {
		s.logger.Warn("stale stored filename failed validation", slog.String("root", string(root)), slog.Any("error", err))
		return
	}
	if err := os.Remove(resolved.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove superseded file", slog.Any("error", err))
	}
}
