// Package observe holds the engine's OpenTelemetry metric instruments and
// the provider setup that exposes them to Prometheus.
//
// Tests should build Metrics with NewMetrics and an sdkmetric ManualReader
// rather than the global provider.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/AaronLay10/StoryEngine"

// Metrics holds every instrument recorded by the engine. All fields are safe
// for concurrent use.
type Metrics struct {
	// RunsStarted counts runs started or restored.
	RunsStarted metric.Int64Counter

	// RunsEnded counts finished runs. Use with attribute "outcome"
	// (complete, stopped, dead_end).
	RunsEnded metric.Int64Counter

	// ActiveRuns tracks runs that have started and not yet ended.
	ActiveRuns metric.Int64UpDownCounter

	// NodesEntered counts node entries. Use with attribute "kind".
	NodesEntered metric.Int64Counter

	// EffectsDispatched counts effects handed to presentation sinks. Use with
	// attribute "kind".
	EffectsDispatched metric.Int64Counter

	// EventsEmitted counts bus events. Use with attribute "event".
	EventsEmitted metric.Int64Counter

	// Commands counts operator commands. Use with attributes "command" and
	// "status".
	Commands metric.Int64Counter

	// TickDuration tracks how long one Tick of one instance takes.
	TickDuration metric.Float64Histogram

	// HTTPRequestDuration tracks API latency. Use with attributes "method",
	// "route" and "status".
	HTTPRequestDuration metric.Float64Histogram
}

var tickBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RunsStarted, err = m.Int64Counter("storyengine.runs.started",
		metric.WithDescription("Story runs started or restored."),
	); err != nil {
		return nil, err
	}
	if met.RunsEnded, err = m.Int64Counter("storyengine.runs.ended",
		metric.WithDescription("Story runs ended, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("storyengine.runs.active",
		metric.WithDescription("Story runs currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.NodesEntered, err = m.Int64Counter("storyengine.nodes.entered",
		metric.WithDescription("Nodes entered, by node kind."),
	); err != nil {
		return nil, err
	}
	if met.EffectsDispatched, err = m.Int64Counter("storyengine.effects.dispatched",
		metric.WithDescription("Presentation effects dispatched, by kind."),
	); err != nil {
		return nil, err
	}
	if met.EventsEmitted, err = m.Int64Counter("storyengine.events.emitted",
		metric.WithDescription("Events emitted on the event bus, by name."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("storyengine.commands",
		metric.WithDescription("Operator commands, by command and status."),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("storyengine.tick.duration",
		metric.WithDescription("Duration of one instance tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("storyengine.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Attr is attribute.String.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRunEnd records the end of a run with its outcome.
func (m *Metrics) RecordRunEnd(ctx context.Context, outcome string) {
	m.RunsEnded.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
	m.ActiveRuns.Add(ctx, -1)
}

// RecordRunStart records a run start.
func (m *Metrics) RecordRunStart(ctx context.Context) {
	m.RunsStarted.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, 1)
}

// RecordNodeEnter records a node entry.
func (m *Metrics) RecordNodeEnter(ctx context.Context, kind string) {
	m.NodesEntered.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordEffect records a dispatched effect.
func (m *Metrics) RecordEffect(ctx context.Context, kind string) {
	m.EffectsDispatched.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordEvent records an emitted bus event.
func (m *Metrics) RecordEvent(ctx context.Context, name string) {
	m.EventsEmitted.Add(ctx, 1, metric.WithAttributes(Attr("event", name)))
}

// RecordCommand records an operator command and whether it succeeded.
func (m *Metrics) RecordCommand(ctx context.Context, command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Commands.Add(ctx, 1, metric.WithAttributes(Attr("command", command), Attr("status", status)))
}
