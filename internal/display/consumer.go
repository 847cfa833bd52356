package display

import (
	"context"
	"time"

	"github.com/yegors/overhead/internal/connectivity"
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/internal/mailbox"
	"github.com/yegors/overhead/pkg/logger"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultOverrideTTL  = 5 * time.Minute

	noDataDetail = "Check Wi-Fi/API"
)

// Source is where the consumer reads published results from
type Source interface {
	Seq() uint64
	Latest() (mailbox.Message, bool)
	Updated() <-chan struct{}
}

// ConsumerConfig tunes the render loop
type ConsumerConfig struct {
	PollInterval time.Duration
	OverrideTTL  time.Duration
	APIHost      string // shown on the splash screen
}

type overrideState struct {
	active    bool
	dirty     bool
	expiresAt time.Time
	flight    flight.Flight
}

// Consumer owns the display state. Everything except Override runs on the Run goroutine.
type Consumer struct {
	source    Source
	renderer  Renderer
	names     TypeNames
	cfg       ConsumerConfig
	overrides chan flight.Flight
	now       func() time.Time
	logger    *logger.Logger

	lastSeq       uint64
	haveDisplayed bool
	lastShown     flight.Flight
	latest        *flight.Flight
	override      overrideState
}

// NewConsumer creates the render consumer
func NewConsumer(source Source, renderer Renderer, names TypeNames, cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.OverrideTTL <= 0 {
		cfg.OverrideTTL = DefaultOverrideTTL
	}
	return &Consumer{
		source:    source,
		renderer:  renderer,
		names:     names,
		cfg:       cfg,
		overrides: make(chan flight.Flight, 1),
		now:       time.Now,
		logger:    log.Named("display"),
	}
}

// Override shows f in place of live data until the override TTL elapses.
// A newer override replaces one that has not been picked up yet.
func (c *Consumer) Override(f flight.Flight) {
	for {
		select {
		case c.overrides <- f:
			return
		default:
		}
		select {
		case <-c.overrides:
		default:
		}
	}
}

// Run renders the splash screen and then follows the source until ctx is done
func (c *Consumer) Run(ctx context.Context) {
	c.renderer.RenderSplash(SplashPanel("Connecting...", c.cfg.APIHost))

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Display consumer stopped")
			return
		case f := <-c.overrides:
			c.applyOverride(f, c.now())
			c.step(c.now())
		case <-c.source.Updated():
			c.step(c.now())
		case <-ticker.C:
			c.step(c.now())
		}
	}
}

func (c *Consumer) applyOverride(f flight.Flight, now time.Time) {
	c.override = overrideState{
		active:    true,
		dirty:     true,
		expiresAt: now.Add(c.cfg.OverrideTTL),
		flight:    f,
	}
	c.logger.Info("Test override active",
		logger.String("ident", f.Identity),
		logger.String("type", f.TypeCode),
		logger.Time("expires_at", c.override.expiresAt))
}

func (c *Consumer) step(now time.Time) {
	if c.override.active && !now.Before(c.override.expiresAt) {
		c.expireOverride()
	}

	if c.source.Seq() != c.lastSeq {
		if msg, ok := c.source.Latest(); ok && msg.Seq != c.lastSeq {
			c.lastSeq = msg.Seq
			c.handle(msg)
		}
	}

	if c.override.active {
		ov := c.override.flight
		if c.override.dirty || !c.haveDisplayed || !SameDisplay(ov, c.lastShown) {
			c.show(ov, true)
			c.override.dirty = false
		}
	}
}

func (c *Consumer) handle(msg mailbox.Message) {
	switch msg.Kind {
	case mailbox.KindLink:
		if c.haveDisplayed || c.override.active {
			return
		}
		switch msg.Link {
		case connectivity.StateOffline:
			c.renderer.RenderSplash(SplashPanel("Offline", "Reconnecting..."))
		case connectivity.StateConnecting:
			c.renderer.RenderSplash(SplashPanel("Connecting...", c.cfg.APIHost))
		}
	default:
		if !msg.Valid {
			if !c.haveDisplayed && !c.override.active {
				c.renderer.RenderNoData(NoDataPanel(noDataDetail))
			}
			return
		}
		f := msg.Flight
		c.latest = &f
		if c.override.active {
			return
		}
		if !c.haveDisplayed || !SameDisplay(f, c.lastShown) {
			c.show(f, false)
		}
	}
}

func (c *Consumer) expireOverride() {
	c.override = overrideState{}
	c.logger.Info("Test override expired")

	if c.latest == nil {
		c.haveDisplayed = false
		c.renderer.RenderNoData(NoDataPanel(noDataDetail))
		return
	}
	c.show(*c.latest, false)
}

func (c *Consumer) show(f flight.Flight, override bool) {
	p := BuildPanel(f, c.names)
	p.Override = override
	c.renderer.Render(f, p)
	c.lastShown = f
	c.haveDisplayed = true
}
