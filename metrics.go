package critwatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/Tap30/critwatch"

// kindKey is the attribute carrying the event kind on per-event counters.
const kindKey = attribute.Key("critwatch.kind")

// recordingMetrics are the OpenTelemetry instruments of a Recording.
type recordingMetrics struct {
	committed  metric.Int64Counter
	evicted    metric.Int64Counter
	discarded  metric.Int64Counter
	dumps      metric.Int64Counter
	dumpErrors metric.Int64Counter
	dumpSize   metric.Int64Histogram
}

func newRecordingMetrics(meter metric.Meter) (*recordingMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	var (
		m   recordingMetrics
		err error
	)
	if m.committed, err = meter.Int64Counter("critwatch.events.committed",
		metric.WithDescription("Events accepted into a recording"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.evicted, err = meter.Int64Counter("critwatch.events.evicted",
		metric.WithDescription("Events dropped oldest-first to respect the size cap"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.discarded, err = meter.Int64Counter("critwatch.events.discarded",
		metric.WithDescription("Committed events not retained because their kind was not enabled or the recording was not running"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.dumps, err = meter.Int64Counter("critwatch.dumps",
		metric.WithDescription("Successful recording dumps"),
		metric.WithUnit("{dump}")); err != nil {
		return nil, err
	}
	if m.dumpErrors, err = meter.Int64Counter("critwatch.dump.errors",
		metric.WithDescription("Failed recording dumps"),
		metric.WithUnit("{dump}")); err != nil {
		return nil, err
	}
	if m.dumpSize, err = meter.Int64Histogram("critwatch.dump.size",
		metric.WithDescription("Size of dumped recording archives"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return &m, nil
}

func noopRecordingMetrics() *recordingMetrics {
	m, _ := newRecordingMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// kindOption precomputes the attribute option added to per-event counters so
// accepting an event does not allocate one.
func kindOption(kind string) metric.AddOption {
	return metric.WithAttributeSet(attribute.NewSet(kindKey.String(kind)))
}

func (m *recordingMetrics) recordAccept(ctx context.Context, opt metric.AddOption, evicted int) {
	m.committed.Add(ctx, 1, opt)
	if evicted > 0 {
		m.evicted.Add(ctx, int64(evicted))
	}
}
