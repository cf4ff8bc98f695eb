package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

const megabyte = 1024 * 1024

// LocalFile is a device file picked for upload.
type LocalFile struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	MIMEType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Extension returns the lowercase extension of the file on disk without the
// dot. Name only counts when there is no path.
func (f LocalFile) Extension() string {
	if f.Path != "" {
		return extensionOf(f.Path)
	}
	return extensionOf(f.Name)
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// DisplayName is the name shown in validation messages.
func (f LocalFile) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.Path)
}

// KindRule holds the accepted extensions and size ceiling of one media kind.
type KindRule struct {
	Kind       domain.AttachmentKind
	Extensions []string
	MaxBytes   int64
}

// Policy decides which files may be attached.
type Policy struct {
	Image KindRule
	Video KindRule
}

// DefaultPolicy mirrors the limits enforced by the media host.
func DefaultPolicy() Policy {
	return Policy{
		Image: KindRule{
			Kind:       domain.AttachmentImage,
			Extensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
			MaxBytes:   10 * megabyte,
		},
		Video: KindRule{
			Kind:       domain.AttachmentVideo,
			Extensions: []string{"mp4", "avi", "mov", "mkv", "webm"},
			MaxBytes:   100 * megabyte,
		},
	}
}

var ErrRejected = errors.New("media: file rejected")

// ValidationError explains why a file was rejected.
type ValidationError struct {
	File   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrRejected
}

// Rule returns the rule matching the file extension.
func (p Policy) Rule(f LocalFile) (KindRule, bool) {
	ext := f.Extension()
	for _, rule := range []KindRule{p.Image, p.Video} {
		for _, allowed := range rule.Extensions {
			if ext == allowed {
				return rule, true
			}
		}
	}
	return KindRule{}, false
}

// Validate rejects files with an unknown extension or over the kind ceiling.
func (p Policy) Validate(f LocalFile) error {
	if f.Extension() == "" {
		return &ValidationError{File: f.DisplayName(), Reason: "file has no valid extension"}
	}
	if f.Path != "" && f.Name != "" && extensionOf(f.Name) != f.Extension() {
		return &ValidationError{File: f.DisplayName(), Reason: "file name does not match the file type"}
	}
	rule, ok := p.Rule(f)
	if !ok {
		allowed := append(append([]string{}, p.Image.Extensions...), p.Video.Extensions...)
		return &ValidationError{
			File:   f.DisplayName(),
			Reason: "extension not allowed. Allowed: " + strings.Join(allowed, ", "),
		}
	}
	if f.SizeBytes > rule.MaxBytes {
		return &ValidationError{
			File: f.DisplayName(),
			Reason: fmt.Sprintf("file too large. Max: %dMB, yours: %.2fMB",
				rule.MaxBytes/megabyte, float64(f.SizeBytes)/megabyte),
		}
	}
	return nil
}

var extensionMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
}

// Normalize fixes the MIME type. The extension table wins over what the
// device reported; an unknown extension keeps a media device type and falls
// back to image/jpeg otherwise.
func Normalize(f LocalFile) LocalFile {
	ext := f.Extension()
	if ext == "" {
		return f
	}
	if mime, ok := extensionMIME[ext]; ok {
		f.MIMEType = mime
		return f
	}
	if strings.HasPrefix(f.MIMEType, "image/") || strings.HasPrefix(f.MIMEType, "video/") {
		return f
	}
	f.MIMEType = "image/jpeg"
	return f
}
