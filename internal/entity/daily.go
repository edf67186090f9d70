package entity

import (
	"context"
	"path"

	"hdx/internal/mavis"
	"hdx/internal/media"
	"hdx/internal/services"
)

// DailyTitle is the render job title for dailies.
const DailyTitle = "HDX Daily"

// Daily is a review movie filed under the dailies of a shot or asset for
// the day it was made.
type Daily struct {
	*Entity
	movie *media.Movie
}

// OpenDaily places moviePath under owner's shot, or asset, at
// dailies/<YYYY-MM-DD>/<movie file name>.
func OpenDaily(ctx context.Context, owner *Entity, moviePath string, opts ...Option) (*Daily, error) {
	if owner == nil {
		return nil, services.Wrap(services.ErrValidation, "entity", "open daily", "owner is required", nil)
	}
	base, ok := owner.ComponentPath("shots")
	if !ok {
		base, ok = owner.ComponentPath("assets")
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "entity", "open daily",
			owner.physical+" is not below a shot or asset", nil)
	}
	movie, err := media.NewMovie(moviePath)
	if err != nil {
		return nil, err
	}

	o := buildOptions(owner.opts, opts)
	raw := path.Join(base, KindDaily.Type(), o.now().Format("2006-01-02"), movie.Name())
	var inherited mavis.Metadata
	if owner.Exists("") {
		inherited = owner.metadata
	}
	e, err := construct(ctx, KindDaily, owner.remote, raw, inherited, o)
	if err != nil {
		return nil, err
	}
	return &Daily{Entity: e, movie: movie}, nil
}

// Movie returns the source movie.
func (d *Daily) Movie() *media.Movie { return d.movie }

// Make registers the daily and submits the movie for rendering into the
// daily's directory. It returns the render job id.
func (d *Daily) Make(ctx context.Context, metadata mavis.Record, params mavis.Params) (string, error) {
	if err := d.Entity.Make(ctx, metadata, params); err != nil {
		return "", err
	}
	renderOpts := []media.RendererOption{media.WithLogger(d.opts.logger)}
	if d.opts.ledger != nil {
		renderOpts = append(renderOpts, media.WithLedger(d.opts.ledger))
	}
	renderer := media.NewRenderer(d.remote, renderOpts...)
	return renderer.Render(ctx, d.movie, path.Dir(d.physical), media.JobOptions{
		Title:      DailyTitle,
		EntityPath: d.physical,
	})
}
