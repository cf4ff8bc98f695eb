package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/observability"
)

// DefaultUploadTimeout bounds a single upload request.
const DefaultUploadTimeout = 30 * time.Second

var ErrUploadFailed = errors.New("media: upload failed")

// Stored is what a backend returns for a successful upload.
type Stored struct {
	URL       string
	StorageID string
}

// Uploader sends one file body to a media backend.
type Uploader interface {
	Upload(ctx context.Context, file LocalFile, body io.Reader) (Stored, error)
}

// Rejection is a file excluded by validation.
type Rejection struct {
	File   LocalFile `json:"file"`
	Reason string    `json:"reason"`
}

// BatchResult is the outcome of UploadAll.
type BatchResult struct {
	Uploaded []domain.Attachment `json:"uploaded"`
	Rejected []Rejection         `json:"rejected,omitempty"`
	// Failed is the file whose upload aborted the batch.
	Failed *LocalFile `json:"failed,omitempty"`
	// Skipped are the files not attempted after the failure.
	Skipped []LocalFile `json:"skipped,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
	Err     error       `json:"-"`
}

// Complete reports whether every valid file was uploaded.
func (r BatchResult) Complete() bool {
	return r.Failed == nil && r.Err == nil
}

// Summary joins the per-file errors.
func (r BatchResult) Summary() string {
	return strings.Join(r.Errors, "; ")
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Policy   Policy
	Uploader Uploader
	Timeout  time.Duration
	// LocalRoot confines readable files to one directory tree. Empty
	// allows any path.
	LocalRoot string
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Pipeline validates, normalizes and uploads attachments in order.
type Pipeline struct {
	policy    Policy
	uploader  Uploader
	timeout   time.Duration
	localRoot string
	logger    *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewPipeline builds a pipeline. A zero Policy means DefaultPolicy.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if len(opts.Policy.Image.Extensions) == 0 && len(opts.Policy.Video.Extensions) == 0 {
		opts.Policy = DefaultPolicy()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultUploadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		policy:    opts.Policy,
		uploader:  opts.Uploader,
		timeout:   opts.Timeout,
		localRoot: resolvePath(opts.LocalRoot),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

func resolvePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// inspect checks the file on disk: it must be a regular file under the
// local root, and policy limits apply to its real size and type. The
// returned file points at the symlink target so uploads read what was
// checked.
func (p *Pipeline) inspect(f LocalFile) (LocalFile, error) {
	if f.Path == "" {
		return f, &ValidationError{File: f.DisplayName(), Reason: "file path is required"}
	}
	resolved := resolvePath(f.Path)
	if p.localRoot != "" {
		rel, err := filepath.Rel(p.localRoot, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return f, &ValidationError{File: f.DisplayName(), Reason: "file is outside the media directory"}
		}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return f, &ValidationError{File: f.DisplayName(), Reason: "file cannot be read"}
	}
	if !info.Mode().IsRegular() {
		return f, &ValidationError{File: f.DisplayName(), Reason: "not a regular file"}
	}
	f.Path = resolved
	f.SizeBytes = info.Size()
	if err := p.policy.Validate(f); err != nil {
		return f, err
	}
	return Normalize(f), nil
}

// Validate applies the pipeline policy to one file.
func (p *Pipeline) Validate(f LocalFile) error {
	return p.policy.Validate(f)
}

// Partition splits files into valid ones and rejections, keeping order.
// Valid files carry their on-disk size.
func (p *Pipeline) Partition(files []LocalFile) ([]LocalFile, []Rejection) {
	var valid []LocalFile
	var rejected []Rejection
	for _, f := range files {
		checked, err := p.inspect(f)
		if err != nil {
			reason := err.Error()
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				reason = vErr.Reason
			}
			rejected = append(rejected, Rejection{File: f, Reason: reason})
			p.metrics.RecordUpload("unknown", "rejected")
			p.logger.Info("attachment rejected", zap.String("file", f.DisplayName()), zap.String("reason", reason))
			continue
		}
		valid = append(valid, checked)
	}
	return valid, rejected
}

// Preview builds the provisional attachment shown before upload completes.
func (p *Pipeline) Preview(f LocalFile) domain.Attachment {
	att := domain.Attachment{
		Kind:         p.kindOf(f),
		SourceURL:    "file://" + f.Path,
		OriginalName: f.DisplayName(),
		SizeBytes:    f.SizeBytes,
		StorageID:    domain.LocalPreviewStorageID,
	}
	if att.Kind == domain.AttachmentImage {
		att.Dimensions = ImageDimensions(f.Path)
	}
	return att
}

// UploadOne validates and uploads a single file and returns its durable
// attachment. Rejections wrap ErrRejected, backend failures ErrUploadFailed.
func (p *Pipeline) UploadOne(ctx context.Context, f LocalFile) (domain.Attachment, error) {
	checked, err := p.inspect(f)
	if err != nil {
		return domain.Attachment{}, err
	}
	return p.upload(ctx, checked)
}

// upload sends a file that already passed inspect.
func (p *Pipeline) upload(ctx context.Context, f LocalFile) (domain.Attachment, error) {
	if p.uploader == nil {
		return domain.Attachment{}, fmt.Errorf("%w: no media backend configured", ErrUploadFailed)
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("%w: open %s: %v", ErrUploadFailed, f.DisplayName(), err)
	}
	defer fh.Close()
	kind := p.kindOf(f)

	uploadCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	stored, err := p.uploader.Upload(uploadCtx, f, fh)
	if err != nil {
		p.metrics.RecordUpload(string(kind), "failed")
		p.logger.Warn("attachment upload failed", zap.String("file", f.DisplayName()), zap.Error(err))
		return domain.Attachment{}, fmt.Errorf("%w: %s: %v", ErrUploadFailed, f.DisplayName(), err)
	}
	if stored.StorageID == "" || stored.StorageID == domain.LocalPreviewStorageID {
		p.metrics.RecordUpload(string(kind), "failed")
		return domain.Attachment{}, fmt.Errorf("%w: %s: backend returned no storage id", ErrUploadFailed, f.DisplayName())
	}
	p.metrics.RecordUpload(string(kind), "uploaded")

	uploadedAt := p.now()
	att := domain.Attachment{
		Kind:         kind,
		SourceURL:    stored.URL,
		OriginalName: f.DisplayName(),
		SizeBytes:    f.SizeBytes,
		StorageID:    stored.StorageID,
		UploadedAt:   &uploadedAt,
	}
	if kind == domain.AttachmentImage {
		att.Dimensions = ImageDimensions(f.Path)
	}
	p.logger.Debug("attachment uploaded",
		zap.String("file", f.DisplayName()),
		zap.String("storage_id", stored.StorageID),
		zap.Duration("latency", uploadedAt.Sub(start)))
	return att, nil
}

// UploadAll filters out invalid files and uploads the rest one at a time,
// stopping at the first upload failure. Rejections never stop the batch.
func (p *Pipeline) UploadAll(ctx context.Context, files []LocalFile) BatchResult {
	valid, rejected := p.Partition(files)
	result := BatchResult{Rejected: rejected}
	for _, r := range rejected {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", r.File.DisplayName(), r.Reason))
	}

	for i, f := range valid {
		att, err := p.upload(ctx, f)
		if err != nil {
			failed := f
			result.Failed = &failed
			result.Skipped = append(result.Skipped, valid[i+1:]...)
			result.Errors = append(result.Errors, err.Error())
			result.Err = err
			return result
		}
		result.Uploaded = append(result.Uploaded, att)
	}
	return result
}

func (p *Pipeline) kindOf(f LocalFile) domain.AttachmentKind {
	if rule, ok := p.policy.Rule(f); ok {
		return rule.Kind
	}
	if strings.HasPrefix(Normalize(f).MIMEType, "video/") {
		return domain.AttachmentVideo
	}
	return domain.AttachmentImage
}
