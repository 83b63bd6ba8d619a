package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/requestcontext"
)

// Stored is where the sink put a file.
type Stored struct {
	ID   string
	Link string
}

// Sink is remote storage organised in folders.
type Sink interface {
	// EnsureFolder returns the id of the folder called name under parentID,
	// creating it when absent.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	Put(ctx context.Context, folderID, name, contentType string, body io.Reader) (Stored, error)
}

// ClientFolderCreator is implemented by sinks that can create a top-level
// folder for a new client.
type ClientFolderCreator interface {
	CreateClientFolder(ctx context.Context, clientName string) (string, error)
}

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultConcurrency   = 4
	maxFormValueLen      = 2048
)

// Batch is a validated set of staged files for one profile.
type Batch struct {
	Profile Profile
	Files   map[string]*StagedFile
	Form    map[string]string
}

// Destination identifies the remote parent folder and the client label.
type Destination struct {
	FolderLink string
	Client     string
}

// Result reports a fully transferred batch.
type Result struct {
	Client     string
	FolderID   string
	Links      map[string]string
	Artifacts  []models.ArtifactRef
	UploadedAt time.Time
}

type Pipeline struct {
	sink        Sink
	stager      *Stager
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRemoteTimeout bounds every individual sink call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func NewPipeline(sink Sink, stager *Stager, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:        sink,
		stager:      stager,
		timeout:     defaultRemoteTimeout,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		tracer:      otel.Tracer("kycdesk/upload"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage reads every part of mr, staging files and collecting form values.
// Any rejected part, or a missing required field, removes everything staged
// so far before the error is returned.
func (p *Pipeline) Stage(ctx context.Context, profile Profile, mr *multipart.Reader) (*Batch, error) {
	batch := &Batch{
		Profile: profile,
		Files:   make(map[string]*StagedFile, len(profile.Fields)),
		Form:    make(map[string]string),
	}
	fail := func(err error) (*Batch, error) {
		p.Cleanup(ctx, batch)
		p.metrics.IncrementRejected(profile.Name)
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(readError(err, "Malformed multipart body"))
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFormValueLen+1))
			_ = part.Close()
			if err != nil {
				return fail(readError(err, "Malformed multipart body"))
			}
			if len(value) > maxFormValueLen {
				return fail(dErrors.New(dErrors.CodePayloadInvalid, fmt.Sprintf("Field %s is too long", name)))
			}
			if name != "" {
				batch.Form[name] = strings.TrimSpace(string(value))
			}
			continue
		}

		field, ok := profile.field(name)
		if !ok {
			_ = part.Close()
			return fail(dErrors.New(dErrors.CodePayloadInvalid, fmt.Sprintf("Unexpected file field: %s", name)))
		}
		if _, dup := batch.Files[name]; dup || len(batch.Files) >= profile.MaxFiles {
			_ = part.Close()
			return fail(dErrors.New(dErrors.CodePayloadInvalid,
				fmt.Sprintf("At most %d files, one per field, are accepted", profile.MaxFiles)))
		}
		if ext := extOf(part.FileName()); !field.Accepts(ext) {
			_ = part.Close()
			return fail(dErrors.New(dErrors.CodePayloadInvalid, fmt.Sprintf("Unsupported file type: %s", ext)).
				WithDetails(map[string]string{"field": name}))
		}

		staged, err := p.stager.Stage(field, part.FileName(), part, profile.MaxFileSize)
		_ = part.Close()
		if errors.Is(err, errTooLarge) {
			return fail(dErrors.New(dErrors.CodePayloadTooLarge,
				fmt.Sprintf("%s exceeds the %dMB limit", name, profile.MaxFileSize/MB)).
				WithDetails(map[string]string{"field": name}))
		}
		if err != nil {
			return fail(stageError(err))
		}
		batch.Files[name] = staged
	}

	var missing []string
	for _, f := range profile.Fields {
		if _, ok := batch.Files[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return fail(dErrors.New(dErrors.CodeBadRequest, "Missing required files: "+strings.Join(missing, ", ")).
			WithDetails(map[string][]string{"missing": missing}))
	}
	return batch, nil
}

func readError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "Request body too large")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
}

func stageError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, io.ErrUnexpectedEOF) {
		return readError(err, "Malformed multipart body")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to stage upload")
}

// Cleanup removes every staged file of batch. Failures are logged.
func (p *Pipeline) Cleanup(ctx context.Context, batch *Batch) {
	if batch == nil {
		return
	}
	for name, f := range batch.Files {
		if err := f.Remove(); err != nil {
			p.logger.WarnContext(ctx, "failed to remove staged upload",
				"field", name,
				"path", f.Path,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
}

type outcome struct {
	field  string
	name   string
	stored Stored
	err    error
}

// Transfer sends every file of batch to the profile's subfolder under the
// destination folder. All files are attempted; staged files are removed
// whatever the outcome. A partial failure names both failed and uploaded fields.
func (p *Pipeline) Transfer(ctx context.Context, batch *Batch, dest Destination) (*Result, error) {
	defer p.Cleanup(ctx, batch)
	start := time.Now()
	profile := batch.Profile

	parentID, err := ExtractFolderID(dest.FolderLink)
	if err != nil {
		p.metrics.IncrementRejected(profile.Name)
		return nil, err
	}
	client := SanitizeClient(dest.Client)
	now := requestcontext.Now(ctx)

	ctx, span := p.tracer.Start(ctx, "upload.transfer", trace.WithAttributes(
		attribute.String("upload.profile", profile.Name),
		attribute.Int("upload.files", len(batch.Files)),
	))
	defer span.End()

	folderID, err := p.ensureFolder(ctx, parentID, profile.Subfolder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure folder")
		p.logger.ErrorContext(ctx, "failed to resolve upload folder",
			"profile", profile.Name,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		p.metrics.ObserveTransfer(profile.Name, "failed", time.Since(start))
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "Remote storage is unavailable, please retry")
	}

	outcomes := make([]outcome, len(profile.Fields))
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, f := range profile.Fields {
		staged := batch.Files[f.Name]
		name := FileName(f.Prefix, client, now, staged.Ext)
		g.Go(func() error {
			stored, err := p.put(ctx, folderID, name, staged)
			outcomes[i] = outcome{field: f.Name, name: name, stored: stored, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Client:     client,
		FolderID:   folderID,
		Links:      make(map[string]string, len(outcomes)),
		UploadedAt: now,
	}
	var failed []string
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o.field)
			p.logger.ErrorContext(ctx, "file transfer failed",
				"profile", profile.Name,
				"field", o.field,
				"error", o.err,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		result.Links[o.field] = o.stored.Link
		result.Artifacts = append(result.Artifacts, models.ArtifactRef{
			Role:       o.field,
			Name:       o.name,
			FolderID:   folderID,
			Link:       o.stored.Link,
			UploadedAt: now,
		})
	}

	if len(failed) > 0 {
		span.SetStatus(codes.Error, "partial transfer")
		p.metrics.ObserveTransfer(profile.Name, "failed", time.Since(start))
		uploaded := make([]string, 0, len(result.Links))
		for field := range result.Links {
			uploaded = append(uploaded, field)
		}
		slices.Sort(uploaded)
		return nil, dErrors.New(dErrors.CodeUpstreamUnavailable, "Upload failed for: "+strings.Join(failed, ", ")).
			WithDetails(map[string]any{"failed": failed, "uploaded": uploaded, "links": result.Links})
	}

	p.metrics.ObserveTransfer(profile.Name, "success", time.Since(start))
	return result, nil
}

func (p *Pipeline) ensureFolder(ctx context.Context, parentID, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.sink.EnsureFolder(ctx, parentID, name)
}

func (p *Pipeline) put(ctx context.Context, folderID, name string, staged *StagedFile) (Stored, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	f, err := os.Open(staged.Path)
	if err != nil {
		return Stored{}, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()
	return p.sink.Put(ctx, folderID, name, staged.ContentType, f)
}

// CreateClientFolder provisions a top-level folder when the sink supports it.
// It returns an empty link otherwise.
func (p *Pipeline) CreateClientFolder(ctx context.Context, clientName string) (string, error) {
	creator, ok := p.sink.(ClientFolderCreator)
	if !ok {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return creator.CreateClientFolder(ctx, clientName)
}
