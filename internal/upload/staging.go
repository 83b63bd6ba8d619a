package upload

import (
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

// StagedFile is an accepted part written to the staging directory.
type StagedFile struct {
	Field        Field
	OriginalName string
	Ext          string
	Path         string
	Size         int64
	ContentType  string
}

var errTooLarge = errors.New("file exceeds size limit")

// Stager writes parts to a shared directory under collision-free names.
type Stager struct {
	dir string

	mu      sync.Mutex
	entropy io.Reader
}

func NewStager(dir string) (*Stager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "kycdesk-uploads")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{
		dir:     dir,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

func (s *Stager) newName(ext string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String() + ext
}

// Stage copies at most limit bytes of r into a new staged file. A part larger
// than limit is removed and reported as errTooLarge.
func (s *Stager) Stage(field Field, originalName string, r io.Reader, limit int64) (*StagedFile, error) {
	ext := extOf(originalName)
	path := filepath.Join(s.dir, s.newName(ext))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if copyErr == nil && n > limit {
		copyErr = errTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		return nil, copyErr
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}
	return &StagedFile{
		Field:        field,
		OriginalName: originalName,
		Ext:          ext,
		Path:         path,
		Size:         n,
		ContentType:  contentType,
	}, nil
}

// Remove deletes the staged file. Missing files are not an error.
func (f *StagedFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
