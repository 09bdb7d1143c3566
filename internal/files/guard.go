// Package files confines every caller-influenced filename to its
// configured root directory before the filesystem is touched.
package files

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// RootID selects a confined resource class.
type RootID string

const (
	// RootUploads holds user profile pictures.
	RootUploads RootID = "uploads"
	// RootInvoices holds invoice receipt PDFs.
	RootInvoices RootID = "invoices"
)

const maxNameLength = 255

// receiptNamePattern is the strict shape of a receipt filename.
var receiptNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+\.pdf$`)

// Resolved is a vetted absolute path plus the content type implied by
// its extension.
type Resolved struct {
	Path        string
	ContentType string
}

// Guard resolves filenames against canonicalized root directories.
type Guard struct {
	roots map[RootID]string
}

// NewGuard canonicalizes both roots once at startup. A missing or
// unresolvable root is a configuration defect and aborts startup.
func NewGuard(uploadsRoot, invoicesRoot string) (*Guard, error) {
	roots := make(map[RootID]string, 2)
	for id, dir := range map[RootID]string{RootUploads: uploadsRoot, RootInvoices: invoicesRoot} {
		if dir == "" {
			return nil, fmt.Errorf("files: %s root not configured", id)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("files: %s root: %w", id, err)
		}
		canonical, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("files: %s root: %w", id, err)
		}
		roots[id] = canonical
	}
	return &Guard{roots: roots}, nil
}

// Resolve validates a caller-supplied filename and returns the
// canonical absolute path, guaranteed to stay inside the root for the
// given resource class. No filesystem access happens before the name
// itself passes validation.
func (g *Guard) Resolve(root RootID, name string) (Resolved, error) {
	rootPath, ok := g.roots[root]
	if !ok {
		return Resolved{}, fmt.Errorf("files: unknown root %q: %w", root, shared.ErrValidation)
	}

	if name == "" || len(name) > maxNameLength {
		return Resolved{}, fmt.Errorf("files: bad filename length: %w", shared.ErrValidation)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\~`) {
		return Resolved{}, fmt.Errorf("files: traversal attempt: %w", shared.ErrAccessDenied)
	}
	if root == RootInvoices && !receiptNamePattern.MatchString(name) {
		return Resolved{}, fmt.Errorf("files: bad receipt name: %w", shared.ErrValidation)
	}

	path := filepath.Clean(filepath.Join(rootPath, name))
	// Resolve symlinks when the target already exists; a fresh upload
	// target does not, and the validated name cannot introduce one.
	if canonical, err := filepath.EvalSymlinks(path); err == nil {
		path = canonical
	}

	if path != rootPath && !strings.HasPrefix(path, rootPath+string(filepath.Separator)) {
		return Resolved{}, fmt.Errorf("files: escaped root: %w", shared.ErrAccessDenied)
	}

	return Resolved{Path: path, ContentType: contentTypeFor(name)}, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
