package storage

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/overhead/internal/display"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/pkg/logger"
)

const (
	DefaultQueueSize     = 64
	DefaultPruneInterval = time.Hour
	writeTimeout         = 5 * time.Second
)

// RecorderConfig tunes the sighting writer
type RecorderConfig struct {
	QueueSize     int
	Retention     time.Duration // 0 keeps everything
	PruneInterval time.Duration
}

// Recorder is a display sink that persists every shown flight.
// Writes happen on a single worker goroutine so the render loop never blocks on I/O.
type Recorder struct {
	store  Store
	sinks  []Sink
	cfg    RecorderConfig
	queue  chan Sighting
	now    func() time.Time
	logger *logger.Logger

	mu      sync.Mutex
	closed  bool
	dropped uint64
	done    chan struct{}
}

// NewRecorder creates a recorder. store may be nil when only sinks are wanted.
func NewRecorder(store Store, sinks []Sink, cfg RecorderConfig, log *logger.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	return &Recorder{
		store:  store,
		sinks:  sinks,
		cfg:    cfg,
		queue:  make(chan Sighting, cfg.QueueSize),
		now:    time.Now,
		logger: log.Named("recorder"),
		done:   make(chan struct{}),
	}
}

// Render implements display.Renderer. Test overrides are not recorded.
func (r *Recorder) Render(f flight.Flight, p display.Panel) {
	if p.Override || !f.Valid {
		return
	}
	if err := r.Enqueue(FromFlight(f, p.Title, r.now())); err != nil {
		r.logger.Debug("Sighting not queued", logger.Error(err))
	}
}

// RenderNoData implements display.Renderer
func (r *Recorder) RenderNoData(display.Panel) {}

// RenderSplash implements display.Renderer
func (r *Recorder) RenderSplash(display.Panel) {}

// Enqueue hands a sighting to the worker without blocking. A full queue drops it.
func (r *Recorder) Enqueue(s Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- s:
	default:
		r.dropped++
		r.logger.Warn("Sighting queue full, dropping",
			logger.String("ident", s.Identity),
			logger.Uint64("dropped", r.dropped))
	}
	return nil
}

// Dropped returns how many sightings were lost to a full queue
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run drains the queue until Stop is called or ctx is done, then flushes what is left
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.PruneInterval)
	defer ticker.Stop()

	if r.cfg.Retention > 0 {
		r.prune(ctx)
	}

	for {
		select {
		case s, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, s)
		case <-ticker.C:
			if r.cfg.Retention > 0 {
				r.prune(ctx)
			}
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// Stop closes the queue and waits for the worker to flush it
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) drain() {
	for {
		select {
		case s, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(context.Background(), s)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, s Sighting) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if r.store != nil {
		id, err := r.store.Insert(ctx, s)
		if err != nil {
			r.logger.Error("Failed to store sighting",
				logger.String("ident", s.Identity),
				logger.Error(err))
		} else {
			s.ID = id
		}
	}

	for _, sink := range r.sinks {
		if err := sink.Emit(ctx, s); err != nil {
			r.logger.Warn("Failed to emit sighting",
				logger.String("ident", s.Identity),
				logger.Error(err))
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	if r.store == nil {
		return
	}
	cutoff := r.now().Add(-r.cfg.Retention)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Warn("Failed to prune sightings", logger.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("Pruned old sightings",
			logger.Int64("count", n),
			logger.Time("before", cutoff))
	}
}
