package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is not an int64 counter", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s was never recorded", name)
	return 0
}

func TestPipelineAndScanCountersRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m, err := InitMetrics()
	if err != nil {
		t.Fatal(err)
	}

	m.RecordScanOutcome("NEW")
	m.RecordScanOutcome("UNCHANGED")
	m.RecordDocumentIndexed("hi", 12)
	m.ParagraphsEmitted.Add(context.Background(), 40)
	m.ClassificationWarnings.Add(context.Background(), 3)

	if got := counterTotal(t, reader, "discovery.scan.outcomes"); got != 2 {
		t.Errorf("scan outcomes = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "pipeline.documents.indexed"); got != 1 {
		t.Errorf("documents indexed = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "pipeline.paragraphs.emitted"); got != 40 {
		t.Errorf("paragraphs emitted = %d, want 40", got)
	}
	if got := counterTotal(t, reader, "pipeline.classification.warnings"); got != 3 {
		t.Errorf("classification warnings = %d, want 3", got)
	}
}
