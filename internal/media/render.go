package media

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hdx/internal/jobs"
	"hdx/internal/logging"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// Submitter hands a job to the render service and returns its id.
type Submitter interface {
	Submit(ctx context.Context, title string, job mavis.Record) (string, error)
}

// Ledger records submitted jobs locally.
type Ledger interface {
	Record(ctx context.Context, job jobs.Job) error
}

// JobOptions shape one render submission.
type JobOptions struct {
	// Title defaults to "[<Kind>] Media Render".
	Title string
	// Command defaults to "<kind>_render".
	Command string
	// Args follow the source and destination arguments.
	Args []string
	// Extra fields are merged over the media's job defaults.
	Extra mavis.Record
	// EntityPath is noted in the ledger.
	EntityPath string
}

// Renderer submits render jobs.
type Renderer struct {
	submitter Submitter
	ledger    Ledger
	logger    *slog.Logger
	now       func() time.Time
}

// RendererOption customizes a Renderer.
type RendererOption func(*Renderer)

// WithLedger records every submission in ledger.
func WithLedger(ledger Ledger) RendererOption {
	return func(r *Renderer) { r.ledger = ledger }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) { r.logger = logging.NewComponentLogger(logger, "render") }
}

// NewRenderer builds a renderer that submits through submitter.
func NewRenderer(submitter Submitter, opts ...RendererOption) *Renderer {
	r := &Renderer{
		submitter: submitter,
		logger:    logging.NewComponentLogger(nil, "render"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render submits m for rendering into destination and returns the job id. The
// first two job arguments are always the source path and
// destination/<media name>.
func Render(ctx context.Context, submitter Submitter, m Media, destination string, opts JobOptions) (string, error) {
	return NewRenderer(submitter).Render(ctx, m, destination, opts)
}

// Render submits m; see the package-level Render.
func (r *Renderer) Render(ctx context.Context, m Media, destination string, opts JobOptions) (string, error) {
	if r == nil || r.submitter == nil {
		return "", services.Wrap(services.ErrConfiguration, "media", "render", "no job submitter configured", nil)
	}
	if m == nil {
		return "", services.Wrap(services.ErrValidation, "media", "render", "media is required", nil)
	}

	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("[%s] Media Render", cases.Title(language.Und).String(m.Kind()))
	}

	job := m.JobDefaults().Clone()
	if job == nil {
		job = mavis.Record{}
	}
	for k, v := range opts.Extra {
		job[k] = v
	}
	job["title"] = title

	command := opts.Command
	if command == "" {
		if c, ok := job["command"].(string); ok && c != "" {
			command = c
		} else {
			command = m.Kind() + "_render"
		}
	}
	job["command"] = command

	target := path.Join(destination, m.Name())
	args := append([]string{m.Path(), target}, opts.Args...)
	job["args"] = args

	id, err := r.submitter.Submit(ctx, title, job)
	if err != nil {
		return "", err
	}
	r.logger.Info("render job submitted",
		logging.String("job_id", id),
		logging.String("command", command),
		logging.String("source", m.Path()),
		logging.String("destination", target))

	if r.ledger != nil {
		entry := jobs.Job{
			JobID:       id,
			Title:       title,
			Command:     command,
			Source:      m.Path(),
			Destination: target,
			EntityPath:  opts.EntityPath,
			Args:        args,
			SubmittedAt: r.now(),
		}
		if err := r.ledger.Record(ctx, entry); err != nil {
			logging.WarnWithContext(r.logger, "render job not recorded in ledger", "ledger_write_failed",
				logging.String("job_id", id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the jobs.ledger_path database"),
				logging.String(logging.FieldImpact, "job runs but is missing from hdx jobs"))
		}
	}
	return id, nil
}
