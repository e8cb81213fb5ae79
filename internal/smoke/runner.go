package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/pkg/logger"
)

// Run exercises ids [Start, Start+Count) against client: register, verify,
// list, degrade, delete, then check the post-delete behavior. It stops at the
// first failing phase.
func Run(ctx context.Context, client *Client, cfg Config, log logger.Logger) (*Stats, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	r := &runner{client: client, cfg: cfg, log: log}
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int64("start", cfg.Start),
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	phases := []struct {
		name    string
		run     func(context.Context) error
		counter *int
	}{
		{"liveness", r.ping, nil},
		{"register", r.forEach(r.register), &stats.Registered},
		{"verify", r.forEach(r.verify), &stats.Verified},
		{"list", r.list, nil},
		{"degrade", r.forEach(r.degrade), &stats.Degraded},
		{"delete", r.forEach(r.delete), &stats.Deleted},
		{"verify deleted", r.forEach(r.verifyDeleted), nil},
	}

	for _, p := range phases {
		started := time.Now()
		if err := p.run(ctx); err != nil {
			stats.finish(r.requests.Load())
			return stats, fmt.Errorf("%s phase: %w", p.name, err)
		}
		if p.counter != nil {
			*p.counter = cfg.Count
		}
		log.Info(ctx, "phase complete", logger.String("phase", p.name), logger.Duration("took", time.Since(started)))
	}

	stats.finish(r.requests.Load())
	log.Info(ctx, "smoke run passed",
		logger.Int64("requests", stats.Requests),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (s *Stats) finish(requests int64) {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Requests = requests
}

type runner struct {
	client   *Client
	cfg      Config
	log      logger.Logger
	requests atomic.Int64
}

// forEach runs step for every id with at most cfg.Workers in flight.
func (r *runner) forEach(step func(context.Context, int64) error) func(context.Context) error {
	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for i := 0; i < r.cfg.Count; i++ {
			id := r.cfg.Start + int64(i)
			g.Go(func() error {
				reqCtx, cancel := context.WithTimeout(gctx, r.cfg.Timeout)
				defer cancel()
				if err := step(reqCtx, id); err != nil {
					return fmt.Errorf("feature %d: %w", id, err)
				}
				if r.cfg.Verbose {
					r.log.Debug(ctx, "step ok", logger.Int64("feature_id", id))
				}
				return nil
			})
		}
		return g.Wait()
	}
}

func (r *runner) ping(ctx context.Context) error {
	r.requests.Add(1)
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.client.Ping(reqCtx)
}

func (r *runner) register(ctx context.Context, id int64) error {
	r.requests.Add(1)
	rec, err := r.client.Register(ctx, id, FeatureData(id))
	if err != nil {
		return err
	}
	if rec.ID != id || rec.Status != model.StatusHealthy {
		return fmt.Errorf("%w: registered record %+v", ErrVerification, rec)
	}
	return nil
}

func (r *runner) verify(ctx context.Context, id int64) error {
	r.requests.Add(2)
	h, err := r.client.Health(ctx, id)
	if err != nil {
		return err
	}
	if h.Status != model.StatusHealthy || h.FeatureID != id {
		return fmt.Errorf("%w: health %+v", ErrVerification, h)
	}

	d, err := r.client.Data(ctx, id)
	if err != nil {
		return err
	}
	if d.Data != FeatureData(id) || d.Version != model.DefaultVersion(id) {
		return fmt.Errorf("%w: data %+v", ErrVerification, d)
	}
	return nil
}

// list checks every exercised id is present and the listing is ascending.
// Other features may exist on a shared service.
func (r *runner) list(ctx context.Context) error {
	r.requests.Add(1)
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	recs, err := r.client.List(reqCtx)
	if err != nil {
		return err
	}

	end := r.cfg.Start + int64(r.cfg.Count)
	seen := 0
	for i, rec := range recs {
		if i > 0 && recs[i-1].ID >= rec.ID {
			return fmt.Errorf("%w: list not ascending at %d", ErrVerification, rec.ID)
		}
		if rec.ID >= r.cfg.Start && rec.ID < end {
			seen++
		}
	}
	if seen != r.cfg.Count {
		return fmt.Errorf("%w: list has %d of %d features", ErrVerification, seen, r.cfg.Count)
	}
	return nil
}

func (r *runner) degrade(ctx context.Context, id int64) error {
	r.requests.Add(2)
	rec, err := r.client.Update(ctx, id, model.Fields{model.FieldStatus: string(model.StatusDegraded)})
	if err != nil {
		return err
	}
	if rec.Status != model.StatusDegraded || rec.Data != FeatureData(id) {
		return fmt.Errorf("%w: updated record %+v", ErrVerification, rec)
	}

	h, err := r.client.Health(ctx, id)
	if err != nil {
		return err
	}
	if h.Status != model.StatusDegraded {
		return fmt.Errorf("%w: health after degrade is %q", ErrVerification, h.Status)
	}
	return nil
}

func (r *runner) delete(ctx context.Context, id int64) error {
	r.requests.Add(1)
	return r.client.Delete(ctx, id)
}

func (r *runner) verifyDeleted(ctx context.Context, id int64) error {
	r.requests.Add(2)
	_, err := r.client.Data(ctx, id)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		return fmt.Errorf("%w: data after delete returned %v", ErrVerification, err)
	}

	h, err := r.client.Health(ctx, id)
	if err != nil {
		return err
	}
	if h.Status != model.StatusUnknown {
		return fmt.Errorf("%w: health after delete is %q", ErrVerification, h.Status)
	}
	return nil
}
