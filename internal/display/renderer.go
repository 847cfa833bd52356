package display

import (
	"github.com/yegors/overhead/internal/flight"
	"github.com/yegors/overhead/pkg/logger"
)

// Renderer is a display sink
type Renderer interface {
	Render(f flight.Flight, p Panel)
	RenderNoData(p Panel)
	RenderSplash(p Panel)
}

// MultiRenderer fans every call out to all sinks in order
type MultiRenderer []Renderer

// Render implements Renderer
func (m MultiRenderer) Render(f flight.Flight, p Panel) {
	for _, r := range m {
		r.Render(f, p)
	}
}

// RenderNoData implements Renderer
func (m MultiRenderer) RenderNoData(p Panel) {
	for _, r := range m {
		r.RenderNoData(p)
	}
}

// RenderSplash implements Renderer
func (m MultiRenderer) RenderSplash(p Panel) {
	for _, r := range m {
		r.RenderSplash(p)
	}
}

// LogRenderer writes every screen change to the log
type LogRenderer struct {
	logger *logger.Logger
}

// NewLogRenderer creates a renderer that logs panels
func NewLogRenderer(log *logger.Logger) *LogRenderer {
	return &LogRenderer{logger: log.Named("panel")}
}

// Render implements Renderer
func (l *LogRenderer) Render(f flight.Flight, p Panel) {
	l.logger.Info("Showing flight",
		logger.String("title", p.Title),
		logger.String("ident", p.Subtitle),
		logger.String("op_class", string(p.OpClass)),
		logger.String("route", p.Route),
		logger.String("hex", f.Hex),
		logger.String("dist", p.Metric(MetricDistance)),
		logger.String("seats", p.Metric(MetricSeats)),
		logger.String("alt", p.Metric(MetricAltitude)),
		logger.String("brg", p.Metric(MetricBearing)),
		logger.Bool("override", p.Override),
	)
}

// RenderNoData implements Renderer
func (l *LogRenderer) RenderNoData(p Panel) {
	l.logger.Info("No data", logger.String("detail", p.Subtitle))
}

// RenderSplash implements Renderer
func (l *LogRenderer) RenderSplash(p Panel) {
	l.logger.Info("Splash", logger.String("title", p.Title), logger.String("subtitle", p.Subtitle))
}
