// Package local stores uploads on the local filesystem. Folder ids are
// opaque tokens long enough to survive folder-link extraction, so links it
// hands out round-trip through the same path as remote ones.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"kycdesk/internal/upload"
	"kycdesk/pkg/platform/sentinel"
)

const (
	linkPrefix   = "local://folders/"
	segmentSep   = "--"
	folderMarker = ".folder"
)

var (
	safeSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	unsafeName  = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

type Sink struct {
	root string

	mu      sync.Mutex
	entropy io.Reader
}

func New(root string) (*Sink, error) {
	if root == "" {
		return nil, fmt.Errorf("local sink root required: %w", sentinel.ErrInvalidState)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink root: %w", err)
	}
	return &Sink{
		root:    root,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// Link renders the shareable reference for a folder id.
func Link(folderID string) string {
	return linkPrefix + folderID
}

func (s *Sink) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// dir maps a folder id to its directory, rejecting ids this sink never minted.
func (s *Sink) dir(folderID string) (string, error) {
	segments := strings.Split(folderID, segmentSep)
	for _, seg := range segments {
		if !safeSegment.MatchString(seg) {
			return "", fmt.Errorf("folder %q: %w", folderID, sentinel.ErrNotFound)
		}
	}
	path := filepath.Join(append([]string{s.root}, segments...)...)
	if _, err := os.Stat(filepath.Join(path, folderMarker)); err != nil {
		return "", fmt.Errorf("folder %q: %w", folderID, sentinel.ErrNotFound)
	}
	return path, nil
}

func (s *Sink) mkdir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(path, folderMarker), os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}

// CreateClientFolder makes a new top-level folder and returns its link.
func (s *Sink) CreateClientFolder(_ context.Context, _ string) (string, error) {
	id := s.newID()
	if err := s.mkdir(filepath.Join(s.root, id)); err != nil {
		return "", fmt.Errorf("create client folder: %w", err)
	}
	return Link(id), nil
}

func (s *Sink) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	parent, err := s.dir(parentID)
	if err != nil {
		return "", err
	}
	slug := unsafeName.ReplaceAllString(name, "_")
	if slug == "" {
		return "", fmt.Errorf("folder name required: %w", sentinel.ErrInvalidState)
	}
	if err := s.mkdir(filepath.Join(parent, slug)); err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return parentID + segmentSep + slug, nil
}

func (s *Sink) Put(ctx context.Context, folderID, name, _ string, body io.Reader) (upload.Stored, error) {
	if err := ctx.Err(); err != nil {
		return upload.Stored{}, err
	}
	dir, err := s.dir(folderID)
	if err != nil {
		return upload.Stored{}, err
	}
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return upload.Stored{}, fmt.Errorf("file name %q: %w", name, sentinel.ErrInvalidState)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return upload.Stored{}, fmt.Errorf("store %s: %w", name, err)
	}
	_, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return upload.Stored{}, fmt.Errorf("store %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return upload.Stored{}, fmt.Errorf("store %s: %w", name, err)
	}
	return upload.Stored{ID: folderID + "/" + name, Link: "file://" + path}, nil
}
