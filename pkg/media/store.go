package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orderbridge/internal/constants"
	"orderbridge/internal/models"
	"orderbridge/internal/security"

	"github.com/sirupsen/logrus"
)

var (
	// ErrStorageWrite wraps every failure to persist a media file
	ErrStorageWrite = errors.New("media storage write failed")
	// ErrMediaNotFound is returned by Open when no such file exists
	ErrMediaNotFound = errors.New("media not found")
	// ErrInvalidFilename is returned by Open for names that are not a single
	// file inside the store root
	ErrInvalidFilename = errors.New("invalid media filename")
)

const tempFilePattern = ".tmp-*"

// ServedMedia is an opened stored file ready to be streamed. The caller
// closes File.
type ServedMedia struct {
	File        *os.File
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Store persists media files under a single root directory. Files are
// create-only; every Save produces a new uniquely named file.
type Store struct {
	root   string
	logger *logrus.Logger
	now    func() time.Time
}

// NewStore creates root if needed and returns a store writing into it
func NewStore(root string, logger *logrus.Logger) (*Store, error) {
	if root == "" {
		root = constants.DefaultMediaDir
	}
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(root, constants.DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory: %w", err)
	}

	return &Store{
		root:   absRoot,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Root returns the absolute storage directory
func (s *Store) Root() string {
	return s.root
}

// Save streams r to a new file named after mimeType. When size is not
// negative the stream must deliver exactly size bytes. No partially written
// file is ever visible under its final name.
func (s *Store) Save(ctx context.Context, r io.Reader, mimeType string, size int64) (*models.StoredMedia, error) {
	mimeType = constants.NormalizeMimeType(mimeType)
	if mimeType == "" {
		mimeType = constants.DefaultMimeType
	}

	filename, err := s.generateFilename(constants.ExtensionForMimeType(mimeType))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	tmp, err := os.CreateTemp(s.root, tempFilePattern)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrStorageWrite, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.WithError(rmErr).Warn("Failed to remove temporary media file")
			}
		}
	}()

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("%w: copy: %w", ErrStorageWrite, err)
	}
	if size >= 0 && written != size {
		return nil, fmt.Errorf("%w: truncated stream: wrote %d of %d bytes", ErrStorageWrite, written, size)
	}

	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("%w: sync: %w", ErrStorageWrite, err)
	}
	if err := tmp.Chmod(constants.DefaultMediaFilePermissions); err != nil {
		return nil, fmt.Errorf("%w: chmod: %w", ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close: %w", ErrStorageWrite, err)
	}

	finalPath := filepath.Join(s.root, filename)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("%w: rename: %w", ErrStorageWrite, err)
	}
	committed = true

	stored := &models.StoredMedia{
		Filename:     filename,
		RelativePath: constants.MediaRoutePrefix + filename,
		MimeType:     mimeType,
		ByteSize:     written,
		CreatedAt:    s.now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"filename":  filename,
		"mime_type": mimeType,
		"bytes":     written,
	}).Debug("Stored media file")

	return stored, nil
}

// Open resolves filename strictly inside the store root. The content type is
// derived from the extension, never from the request.
func (s *Store) Open(filename string) (*ServedMedia, error) {
	if strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("%w: hidden file", ErrInvalidFilename)
	}

	path, err := security.ValidateFilename(filename, s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilename, err)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat media file: %w", err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, ErrMediaNotFound
	}

	return &ServedMedia{
		File:        file,
		ContentType: constants.MimeTypeForExtension(filepath.Ext(filename)),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// generateFilename returns media_<unixNano>_<random hex><ext>
func (s *Store) generateFilename(ext string) (string, error) {
	suffix := make([]byte, constants.MediaFilenameRandomBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}

	return fmt.Sprintf("%s%d_%s%s", constants.MediaFilenamePrefix, s.now().UnixNano(), hex.EncodeToString(suffix), ext), nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
