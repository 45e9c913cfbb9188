// Package loader groups the samples of a dataset into batches, optionally
// shuffling them and fetching them with a pool of worker goroutines.
package loader

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Noofbiz/facemarks/datasets"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultPrefetch = 2

// Config holds the Loader parameters.
type Config struct {
	// BatchSize is the number of samples per batch; the last batch of an
	// epoch may be smaller.
	BatchSize int
	// Shuffle draws a new sample permutation at the start of every epoch.
	Shuffle bool
	// NumWorkers is the number of goroutines fetching samples. Zero fetches
	// them on the caller's goroutine.
	NumWorkers int
	// Prefetch is the number of batches assembled ahead of the consumer when
	// NumWorkers > 0. Zero selects the default of 2.
	Prefetch int
	// Seed seeds the shuffle. Zero selects a time based seed.
	Seed uint64
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Name is reported by Name and in logs.
	Name string
}

// Loader iterates a dataset in batches. It is safe to run several epochs at
// once; each draws its own order.
type Loader struct {
	ds     datasets.Dataset
	cfg    Config
	logger *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// pull state of the train.Dataset adapter.
	pullMu sync.Mutex
	next   func() (*datasets.Batch, error, bool)
	stop   func()
}

// New returns a Loader over ds.
func New(ds datasets.Dataset, cfg Config) (*Loader, error) {
	if ds == nil {
		return nil, fmt.Errorf("loader needs a dataset: %w", datasets.ErrConfig)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size %d must be at least 1: %w", cfg.BatchSize, datasets.ErrConfig)
	}
	if cfg.NumWorkers < 0 {
		return nil, fmt.Errorf("worker count %d must not be negative: %w", cfg.NumWorkers, datasets.ErrConfig)
	}
	if cfg.Prefetch < 0 {
		return nil, fmt.Errorf("prefetch %d must not be negative: %w", cfg.Prefetch, datasets.ErrConfig)
	}
	if cfg.Prefetch == 0 {
		cfg.Prefetch = defaultPrefetch
	}
	if cfg.Name == "" {
		cfg.Name = "loader"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Loader{
		ds:     ds,
		cfg:    cfg,
		logger: logger.With(zap.String("loader", cfg.Name)),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Len returns the number of batches in one epoch.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.cfg.BatchSize
}

// order returns the sample indices of a new epoch.
func (l *Loader) order() []int {
	n := l.ds.Len()
	if !l.cfg.Shuffle {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return l.rng.Perm(n)
}

// Epoch returns an iterator over the batches of one full pass. Every call
// starts a new epoch. Iteration stops after the first error, which is yielded
// with a nil batch. Breaking out of the loop releases the workers.
func (l *Loader) Epoch(ctx context.Context) iter.Seq2[*datasets.Batch, error] {
	return func(yield func(*datasets.Batch, error) bool) {
		order := l.order()
		e := &epoch{
			id:      uuid.New().String(),
			order:   order,
			batches: (len(order) + l.cfg.BatchSize - 1) / l.cfg.BatchSize,
		}
		l.logger.Info("starting epoch",
			zap.String("epoch", e.id),
			zap.Int("samples", len(order)),
			zap.Int("batches", e.batches),
			zap.Bool("shuffle", l.cfg.Shuffle),
			zap.Int("workers", l.cfg.NumWorkers))

		if l.cfg.NumWorkers == 0 {
			l.sequential(ctx, e, yield)
			return
		}
		l.parallel(ctx, e, yield)
	}
}

type epoch struct {
	id      string
	order   []int
	batches int
}

// chunk returns the sample indices of batch b.
func (e *epoch) chunk(b, batchSize int) []int {
	start := b * batchSize
	return e.order[start:min(start+batchSize, len(e.order))]
}

func (l *Loader) sequential(ctx context.Context, e *epoch, yield func(*datasets.Batch, error) bool) {
	for b := 0; b < e.batches; b++ {
		if err := ctx.Err(); err != nil {
			yield(nil, errors.WithMessagef(err, "loader %s: epoch interrupted at batch %d", l.cfg.Name, b))
			return
		}
		chunk := e.chunk(b, l.cfg.BatchSize)
		samples := make([]datasets.Sample, len(chunk))
		for pos, index := range chunk {
			s, err := l.sample(index)
			if err != nil {
				yield(nil, err)
				return
			}
			samples[pos] = s
		}
		batch, err := l.collate(b, samples)
		if err != nil {
			yield(nil, err)
			return
		}
		l.logBatch(e, b, batch)
		if !yield(batch, nil) {
			return
		}
	}
}

type job struct {
	pos, index int
}

type result struct {
	pos    int
	sample datasets.Sample
	err    error
}

type assembled struct {
	batch *datasets.Batch
	err   error
}

// parallel fans the samples of each batch out to NumWorkers goroutines and
// reassembles them in batch order. Up to Prefetch batches wait for the
// consumer.
func (l *Loader) parallel(parent context.Context, e *epoch, yield func(*datasets.Batch, error) bool) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	jobs := make(chan job)
	// Sized so workers never block on a batch the producer is still dispatching.
	results := make(chan result, l.cfg.BatchSize)
	out := make(chan assembled, l.cfg.Prefetch)

	wg.Add(l.cfg.NumWorkers)
	for w := 0; w < l.cfg.NumWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				s, err := l.sample(j.index)
				select {
				case results <- result{pos: j.pos, sample: s, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer close(jobs)
		for b := 0; b < e.batches; b++ {
			chunk := e.chunk(b, l.cfg.BatchSize)
			for pos, index := range chunk {
				select {
				case jobs <- job{pos: pos, index: index}:
				case <-ctx.Done():
					return
				}
			}

			samples := make([]datasets.Sample, len(chunk))
			var firstErr error
			firstPos := len(chunk)
			for range chunk {
				select {
				case r := <-results:
					samples[r.pos] = r.sample
					// Report the error of the earliest sample, as a sequential pass would.
					if r.err != nil && r.pos < firstPos {
						firstErr, firstPos = r.err, r.pos
					}
				case <-ctx.Done():
					return
				}
			}

			var a assembled
			if firstErr != nil {
				a.err = firstErr
			} else {
				a.batch, a.err = l.collate(b, samples)
			}
			select {
			case out <- a:
			case <-ctx.Done():
				return
			}
			if a.err != nil {
				return
			}
		}
	}()

	received := 0
	for a := range out {
		if a.err != nil {
			yield(nil, a.err)
			return
		}
		l.logBatch(e, received, a.batch)
		received++
		if !yield(a.batch, nil) {
			return
		}
	}
	if received < e.batches {
		if err := parent.Err(); err != nil {
			yield(nil, errors.WithMessagef(err, "loader %s: epoch interrupted at batch %d", l.cfg.Name, received))
		}
	}
}

func (l *Loader) sample(index int) (datasets.Sample, error) {
	s, err := l.ds.Sample(index)
	if err != nil {
		return datasets.Sample{}, errors.WithMessagef(err, "loader %s: failed to load sample %d", l.cfg.Name, index)
	}
	return s, nil
}

func (l *Loader) collate(b int, samples []datasets.Sample) (*datasets.Batch, error) {
	batch, err := datasets.Collate(samples)
	if err != nil {
		return nil, errors.WithMessagef(err, "loader %s: failed to collate batch %d", l.cfg.Name, b)
	}
	return batch, nil
}

func (l *Loader) logBatch(e *epoch, b int, batch *datasets.Batch) {
	l.logger.Debug("batch ready",
		zap.String("epoch", e.id),
		zap.Int("batch", b),
		zap.Int("size", batch.Size),
		zap.Ints("images_shape", batch.ImagesShape()),
		zap.String("memory", humanize.Bytes(uint64(batch.Bytes()))))
}
