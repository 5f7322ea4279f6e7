// Package staging receives multipart uploads into a private staging directory.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amodomio/media-uploader/internal/media"
)

var (
	// ErrFileRequired means the request carried no file part (or was not multipart at all).
	ErrFileRequired = errors.New("file is required")
	// ErrFileTooLarge means the file part exceeded the byte ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidPayload covers every other malformed multipart body.
	ErrInvalidPayload = errors.New("invalid multipart payload")
)

const (
	defaultMaxFields     = 64
	defaultMaxFieldBytes = 1 << 20
	fallbackMime         = "application/octet-stream"
	filePerm             = 0o644
	maxExtLen            = 16
)

// Stager writes uploads into dir with collision-free names.
type Stager struct {
	dir           string
	maxFields     int
	maxFieldBytes int64
	logger        *slog.Logger
	now           func() time.Time
}

// New creates the staging directory if needed and returns a Stager writing into it.
func New(log *slog.Logger, dir string) (*Stager, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{
		dir:           dir,
		maxFields:     defaultMaxFields,
		maxFieldBytes: defaultMaxFieldBytes,
		logger:        log.With(slog.String("service", "staging")),
		now:           time.Now,
	}, nil
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Receive streams the multipart body of r and stages the single file sent
// under field. The file may be at most maxBytes long. On error nothing is
// left in the staging directory.
func (s *Stager) Receive(ctx context.Context, r *http.Request, field string, maxBytes int64) (media.StagedFile, error) {
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return media.StagedFile{}, ErrFileRequired
	}
	if err != nil {
		return media.StagedFile{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	staged, err := s.consume(ctx, mr, field, maxBytes)
	if err != nil {
		if rmErr := staged.Remove(); rmErr != nil {
			s.logger.Debug("staged file cleanup failed", slog.String("path", staged.Path), slog.Any("error", rmErr))
		}
		return media.StagedFile{}, err
	}
	if staged.Path == "" {
		return media.StagedFile{}, ErrFileRequired
	}
	return staged, nil
}

// consume walks every part. It returns the staged file seen so far together
// with any error so the caller can clean it up.
func (s *Stager) consume(ctx context.Context, mr *multipart.Reader, field string, maxBytes int64) (media.StagedFile, error) {
	var staged media.StagedFile
	fields := 0
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return staged, nil
		}
		if err != nil {
			return staged, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}

		if part.FileName() == "" {
			fields++
			err := s.skipField(ctx, part, fields)
			_ = part.Close()
			if err != nil {
				return staged, err
			}
			continue
		}

		if part.FormName() != field {
			_ = part.Close()
			return staged, fmt.Errorf("%w: unexpected file field %q", ErrInvalidPayload, part.FormName())
		}
		if staged.Path != "" {
			_ = part.Close()
			return staged, fmt.Errorf("%w: more than one file", ErrInvalidPayload)
		}

		staged, err = s.write(ctx, part, maxBytes)
		_ = part.Close()
		if err != nil {
			return staged, err
		}
	}
}

func (s *Stager) skipField(ctx context.Context, part *multipart.Part, count int) error {
	if count > s.maxFields {
		return fmt.Errorf("%w: too many fields", ErrInvalidPayload)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(&contextReader{ctx: ctx, r: part}, s.maxFieldBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if n > s.maxFieldBytes {
		return fmt.Errorf("%w: field %q too large", ErrInvalidPayload, part.FormName())
	}
	return nil
}

// write copies one file part to a fresh staging file. The returned StagedFile
// always names the file that was created, even on error.
func (s *Stager) write(ctx context.Context, part *multipart.Part, maxBytes int64) (media.StagedFile, error) {
	staged := media.StagedFile{
		Path:     filepath.Join(s.dir, s.stagedName(part.FileName())),
		Filename: part.FileName(),
		Mime:     declaredMime(part.Header.Get("Content-Type")),
	}

	f, err := os.OpenFile(staged.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return media.StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}

	src := &contextReader{ctx: ctx, r: part}
	written, copyErr := io.Copy(f, &io.LimitedReader{R: src, N: maxBytes + 1})
	closeErr := f.Close()
	staged.SizeBytes = written

	switch {
	case copyErr != nil && src.err != nil:
		return staged, fmt.Errorf("%w: %v", ErrInvalidPayload, src.err)
	case copyErr != nil:
		return staged, fmt.Errorf("write staged file: %w", copyErr)
	case written > maxBytes:
		return staged, ErrFileTooLarge
	case closeErr != nil:
		return staged, fmt.Errorf("close staged file: %w", closeErr)
	}
	return staged, nil
}

// stagedName is <unix nanos>-<uuid><lower-cased original extension>.
func (s *Stager) stagedName(original string) string {
	return fmt.Sprintf("%d-%s%s", s.now().UnixNano(), uuid.NewString(), safeExt(original))
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// declaredMime normalizes the client-declared part Content-Type. The bytes are not sniffed.
func declaredMime(header string) string {
	if strings.TrimSpace(header) == "" {
		return fallbackMime
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fallbackMime
	}
	return mediaType
}

// contextReader stops reading once ctx is done and remembers read-side errors
// so they can be told apart from write failures.
type contextReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		c.err = err
	}
	return n, err
}
