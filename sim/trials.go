package sim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrTrialsFailed is returned when some of the trials didn't converge.
var ErrTrialsFailed = errors.New("trials failed")

// RunTrials runs cfg.Trials independent simulations, cfg.Parallel at a time.
// Trial seeds are derived from cfg.Seed, so a non-zero seed makes the whole
// set of trials reproducible. Failed trials don't stop the others; their
// errors are recorded in the reports.
func RunTrials(ctx context.Context, cfg Config, opts ...Opt) ([]*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reports := make([]*Report, cfg.Trials)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Parallel)
	for n := range cfg.Trials {
		eg.Go(func() error {
			trialCfg := cfg
			trialCfg.Seed = trialSeed(cfg.Seed, n)
			s, err := New(trialCfg, opts...)
			if err != nil {
				return fmt.Errorf("trial %d: %w", n, err)
			}
			defer s.Release()
			s.logger = s.logger.With(zap.Int("trial", n))
			r, _ := s.Run(ctx)
			r.Trial = n
			reports[n] = r
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	failed := 0
	for _, r := range reports {
		if !r.Converged {
			failed++
		}
	}
	if failed != 0 {
		return reports, fmt.Errorf("%w: %d of %d", ErrTrialsFailed, failed, cfg.Trials)
	}
	return reports, nil
}
