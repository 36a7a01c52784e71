// Package runner wires discovery, claiming, dispatch and validation together.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/listing"
	"github.com/go-go-golems/batch-validator/pkg/status"
	"github.com/go-go-golems/batch-validator/pkg/validate"
	"github.com/rs/zerolog/log"
)

type Runner struct {
	Scanner    *listing.Scanner
	Status     *status.Controller
	Engine     *validate.Engine
	Dispatcher dispatch.Dispatcher
}

// TriggerOptions controls one discovery pass.
type TriggerOptions struct {
	// Claim marks every ready batch RUNNING.
	Claim bool
	// Dispatch publishes claimed batches. It implies Claim.
	Dispatch bool
	// Customers restricts the pass to these customers when not empty.
	Customers []string
}

// TriggerResult lists the batches handled by a discovery pass and everything
// that went wrong along the way.
type TriggerResult struct {
	Ready    []*batch.Batch
	Claimed  []*batch.Batch
	Failures []error
}

// Trigger runs one discovery pass. Only a failed listing is returned as an
// error.
func (r *Runner) Trigger(ctx context.Context, opts TriggerOptions) (*TriggerResult, error) {
	res, err := r.Scanner.Discover(ctx)
	if err != nil {
		return nil, err
	}
	out := &TriggerResult{
		Ready:    listing.FilterCustomers(res.Batches, opts.Customers),
		Failures: res.Failures,
	}
	if !opts.Claim && !opts.Dispatch {
		return out, nil
	}
	if opts.Dispatch && r.Dispatcher == nil {
		return nil, errors.New("dispatch requested without a dispatcher")
	}

	for _, b := range out.Ready {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := r.Status.Claim(ctx, b); err != nil {
			log.Error().Err(err).Str("batch", b.Key().String()).Msg("Could not claim batch")
			out.Failures = append(out.Failures, err)
			continue
		}
		if opts.Dispatch {
			if err := r.Dispatcher.Dispatch(ctx, b); err != nil {
				out.Failures = append(out.Failures, r.rollback(ctx, b, err))
				continue
			}
		}
		out.Claimed = append(out.Claimed, b)
	}
	log.Info().
		Int("ready", len(out.Ready)).
		Int("claimed", len(out.Claimed)).
		Int("failures", len(out.Failures)).
		Msg("Discovery pass done")
	return out, nil
}

// rollback records ERROR on a claimed batch that could not be handed off, so
// that the next pass picks it up again.
func (r *Runner) rollback(ctx context.Context, b *batch.Batch, cause error) error {
	log.Error().Err(cause).Str("batch", b.Key().String()).Msg("Could not dispatch batch")
	err := fmt.Errorf("failed to dispatch batch %s: %w", b.Key(), cause)
	if serr := r.Status.SetStatus(context.WithoutCancel(ctx), b, batch.StatusError); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

// Consume validates batches from src with the given number of workers until
// the source is closed or ctx is cancelled.
func (r *Runner) Consume(ctx context.Context, src dispatch.Source, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.work(ctx, src, i)
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (r *Runner) work(ctx context.Context, src dispatch.Source, worker int) error {
	for {
		d, err := src.Receive(ctx)
		if err != nil {
			if errors.Is(err, dispatch.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		report, verr := r.Engine.Validate(ctx, d.Batch)
		if verr != nil {
			log.Error().Err(verr).Int("worker", worker).Str("batch", d.Batch.Key().String()).Msg("Validation failed")
		} else {
			log.Debug().Int("worker", worker).Str("batch", report.Key.String()).Str("status", report.Status.String()).Msg("Validation done")
		}
		if err := d.Ack(ctx); err != nil {
			log.Error().Err(err).Str("batch", d.Batch.Key().String()).Msg("Could not acknowledge delivery")
		}
	}
}

// Schedule runs Trigger immediately and then every interval until ctx is
// cancelled. Pass errors are logged and do not stop the schedule.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration, opts TriggerOptions) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Trigger(ctx, opts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Discovery pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
