package staging

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amodomio/media-uploader/internal/logger"
)

type filePart struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

type formField struct {
	name  string
	value string
}

func newStager(t *testing.T) *Stager {
	t.Helper()
	s, err := New(logger.Discard(), filepath.Join(t.TempDir(), "tmp"))
	require.NoError(t, err)
	return s
}

func multipartBody(t *testing.T, fields []formField, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f.name, f.value))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func uploadRequest(t *testing.T, fields []formField, files ...filePart) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func assertStagingEmpty(t *testing.T, s *Stager) {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

var stagedNamePattern = regexp.MustCompile(`^\d+-[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.jpg$`)

func TestReceiveStagesSingleFile(t *testing.T) {
	s := newStager(t)
	req := uploadRequest(t, []formField{{"note", "hello"}}, filePart{"file", "Photo.JPG", "image/jpeg", []byte("jpeg-data")})

	staged, err := s.Receive(context.Background(), req, "file", 1024)
	require.NoError(t, err)

	assert.Equal(t, s.Dir(), filepath.Dir(staged.Path))
	assert.Regexp(t, stagedNamePattern, filepath.Base(staged.Path))
	assert.Equal(t, "image/jpeg", staged.Mime)
	assert.Equal(t, "Photo.JPG", staged.Filename)
	assert.Equal(t, int64(len("jpeg-data")), staged.SizeBytes)

	data, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-data", string(data))
}

func TestReceiveSizeBoundary(t *testing.T) {
	const limit = 4096

	s := newStager(t)
	atLimit := uploadRequest(t, nil, filePart{"file", "a.png", "image/png", bytes.Repeat([]byte{1}, limit)})
	staged, err := s.Receive(context.Background(), atLimit, "file", limit)
	require.NoError(t, err)
	assert.Equal(t, int64(limit), staged.SizeBytes)
	require.NoError(t, staged.Remove())

	overLimit := uploadRequest(t, nil, filePart{"file", "a.png", "image/png", bytes.Repeat([]byte{1}, limit+1)})
	_, err = s.Receive(context.Background(), overLimit, "file", limit)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assertStagingEmpty(t, s)
}

func TestReceiveRejections(t *testing.T) {
	png := filePart{"file", "a.png", "image/png", []byte("png")}

	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		want error
	}{
		{
			name: "second file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, nil, png, png)
			},
			want: ErrInvalidPayload,
		},
		{
			name: "unexpected file field",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, nil, filePart{"avatar", "a.png", "image/png", []byte("x")})
			},
			want: ErrInvalidPayload,
		},
		{
			name: "unexpected field after file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, nil, png, filePart{"other", "b.png", "image/png", []byte("y")})
			},
			want: ErrInvalidPayload,
		},
		{
			name: "no file part",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, []formField{{"file", "not-a-file"}})
			},
			want: ErrFileRequired,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"file":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			want: ErrFileRequired,
		},
		{
			name: "missing boundary",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("garbage"))
				req.Header.Set("Content-Type", "multipart/form-data")
				return req
			},
			want: ErrInvalidPayload,
		},
		{
			name: "truncated body",
			req: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, nil, filePart{"file", "a.png", "image/png", bytes.Repeat([]byte("z"), 2048)})
				truncated := body.Bytes()[:body.Len()-100]
				req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(truncated))
				req.Header.Set("Content-Type", contentType)
				return req
			},
			want: ErrInvalidPayload,
		},
		{
			name: "oversized field",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, []formField{{"note", strings.Repeat("n", defaultMaxFieldBytes+1)}}, png)
			},
			want: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStager(t)
			_, err := s.Receive(context.Background(), tt.req(t), "file", 1<<20)
			assert.ErrorIs(t, err, tt.want)
			assertStagingEmpty(t, s)
		})
	}
}

func TestReceiveTooManyFields(t *testing.T) {
	s := newStager(t)
	s.maxFields = 2
	req := uploadRequest(t, []formField{{"a", "1"}, {"b", "2"}, {"c", "3"}}, filePart{"file", "a.png", "image/png", []byte("x")})

	_, err := s.Receive(context.Background(), req, "file", 1024)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assertStagingEmpty(t, s)
}

func TestReceiveCancelledContext(t *testing.T) {
	s := newStager(t)
	req := uploadRequest(t, nil, filePart{"file", "a.png", "image/png", []byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Receive(ctx, req, "file", 1024)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assertStagingEmpty(t, s)
}

func TestReceiveDeclaredMimeIsNotSniffed(t *testing.T) {
	s := newStager(t)
	req := uploadRequest(t, nil, filePart{"file", "clip.mp4", "Video/MP4; codecs=avc1", []byte("\x89PNG\r\n\x1a\n")})

	staged, err := s.Receive(context.Background(), req, "file", 1024)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", staged.Mime)
}

func TestStagedNamesAreUnique(t *testing.T) {
	s := newStager(t)
	fixed := time.Unix(1700000000, 0)
	s.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		name := s.stagedName("x.webp")
		assert.False(t, seen[name])
		seen[name] = true
		assert.True(t, strings.HasPrefix(name, "1700000000000000000-"))
		assert.True(t, strings.HasSuffix(name, ".webp"))
	}
}

func TestDeclaredMime(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":               "image/jpeg",
		"IMAGE/PNG":                "image/png",
		"image/webp; charset=utf8": "image/webp",
		"":                         "application/octet-stream",
		"not a mime":               "application/octet-stream",
	}
	for header, want := range tests {
		assert.Equal(t, want, declaredMime(header), "header=%q", header)
	}
}

func TestSafeExt(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":              ".jpg",
		"archive.tar.gz":         ".gz",
		"noext":                  "",
		"trailing.":              "",
		"weird.j p":              "",
		"long.abcdefghijklmnopq": "",
		".hidden":                ".hidden",
	}
	for name, want := range tests {
		assert.Equal(t, want, safeExt(name), "name=%q", name)
	}
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New(nil, " ")
	assert.Error(t, err)
}
