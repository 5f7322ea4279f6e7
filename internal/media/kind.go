package media

import (
	"sort"
	"strings"
)

// Kind classifies an upload and selects its size limit and accepted formats.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Per-kind upload ceilings.
const (
	MaxImageBytes int64 = 10 << 20
	MaxVideoBytes int64 = 20 << 20
)

// extensionByMime is the only set of MIME types ever placed. Each maps to exactly one extension.
var extensionByMime = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"video/mp4":  "mp4",
}

// ResolveKind maps the raw kind query value to a Kind.
func ResolveKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindImage, KindVideo:
		return Kind(raw), nil
	default:
		return "", ErrInvalidKind
	}
}

// MaxBytes returns the largest accepted upload for k, or 0 for an unknown kind.
func (k Kind) MaxBytes() int64 {
	switch k {
	case KindImage:
		return MaxImageBytes
	case KindVideo:
		return MaxVideoBytes
	default:
		return 0
	}
}

// Dir returns the top-level directory (and public URL prefix) of k.
func (k Kind) Dir() string {
	switch k {
	case KindImage:
		return "images"
	case KindVideo:
		return "videos"
	default:
		return ""
	}
}

// Accepts reports whether a declared MIME type is consistent with k.
// It does not consult the extension table; see ExtensionForMime.
func (k Kind) Accepts(mime string) bool {
	switch k {
	case KindImage:
		return strings.HasPrefix(mime, "image/")
	case KindVideo:
		return mime == "video/mp4"
	default:
		return false
	}
}

// ExtensionForMime returns the file extension (without dot) for a supported MIME type.
func ExtensionForMime(mime string) (string, bool) {
	ext, ok := extensionByMime[mime]
	return ext, ok
}

// AcceptedMimes lists, sorted, the MIME types that can be placed for k.
func AcceptedMimes(k Kind) []string {
	out := make([]string, 0, len(extensionByMime))
	for mime := range extensionByMime {
		if k.Accepts(mime) {
			out = append(out, mime)
		}
	}
	sort.Strings(out)
	return out
}
