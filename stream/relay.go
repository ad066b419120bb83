package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/contribution-engine/logger"
)

// Recorder receives relay metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveRelay(consumer, tag string, n int, offset int64)
	RelayFailed(consumer, tag string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRelay(string, string, int, int64) {}
func (nopRecorder) RelayFailed(string, string)              {}

// RelayConfig holds what is shared by the relays of one consumer.
type RelayConfig struct {
	Consumer  string
	Source    Source
	Offsets   OffsetStore
	Handler   Handler
	BatchSize int
	Interval  time.Duration
	Logger    *logger.Logger
	Recorder  Recorder
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	return c
}

// Relay follows one tag on behalf of one consumer.
type Relay struct {
	cfg    RelayConfig
	tag    string
	logger *logger.Logger
}

// NewRelay builds the relay of cfg.Consumer for tag.
func NewRelay(cfg RelayConfig, tag string) *Relay {
	cfg = cfg.withDefaults()
	return &Relay{
		cfg:    cfg,
		tag:    tag,
		logger: cfg.Logger.Named("relay").With("consumer", cfg.Consumer, "tag", tag),
	}
}

// NewRelays builds one relay per tag of tagger.
func NewRelays(cfg RelayConfig, tagger Tagger) []*Relay {
	tags := tagger.Tags()
	relays := make([]*Relay, len(tags))
	for i, tag := range tags {
		relays[i] = NewRelay(cfg, tag)
	}
	return relays
}

func (r *Relay) Tag() string { return r.tag }

// Poll delivers at most one batch and returns how many events went
// through. On a handler failure the offset stops right before the failed
// event.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	after, err := r.cfg.Offsets.LoadOffset(ctx, r.cfg.Consumer, r.tag)
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}

	batch, err := r.cfg.Source.ReadTagged(ctx, r.tag, after, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("read %s after %d: %w", r.tag, after, err)
	}

	delivered := 0
	var handleErr error
	for _, env := range batch {
		if err := r.cfg.Handler.Handle(ctx, env); err != nil {
			handleErr = fmt.Errorf("handle offset %d (%s): %w", env.Offset, env.Event.Kind(), err)
			break
		}
		after = env.Offset
		delivered++
	}

	if delivered > 0 {
		if err := r.cfg.Offsets.SaveOffset(ctx, r.cfg.Consumer, r.tag, after); err != nil {
			return delivered, fmt.Errorf("save offset %d: %w", after, err)
		}
		r.cfg.Recorder.ObserveRelay(r.cfg.Consumer, r.tag, delivered, after)
	}
	if handleErr != nil {
		r.cfg.Recorder.RelayFailed(r.cfg.Consumer, r.tag)
		return delivered, handleErr
	}
	return delivered, nil
}

// Drain polls until the tag has nothing left after the stored offset.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.Poll(ctx)
		total += n
		if err != nil || n < r.cfg.BatchSize {
			return total, err
		}
	}
}

// Run drains the tag every Interval until ctx is done. Failures are
// logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if n, err := r.Drain(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.logger.Warn("relay poll failed", "error", err)
		} else if n > 0 {
			r.logger.Debug("relayed events", "count", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunAll runs every relay until ctx is done.
func RunAll(ctx context.Context, relays []*Relay) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range relays {
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}
