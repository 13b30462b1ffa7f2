package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter         metric.Int64Counter
	RequestDuration        metric.Float64Histogram
	DocumentsIndexed       metric.Int64Counter
	OCRDuration            metric.Float64Histogram
	EmbeddingDuration      metric.Float64Histogram
	SearchDuration         metric.Float64Histogram
	SearchBranchErrors     metric.Int64Counter
	ParagraphsEmitted      metric.Int64Counter
	ScanOutcomes           metric.Int64Counter
	ClassificationWarnings metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("discourse-search-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIndexed, err := meter.Int64Counter(
		"pipeline.documents.indexed",
		metric.WithDescription("Documents fully indexed"),
	)
	if err != nil {
		return nil, err
	}

	ocrDuration, err := meter.Float64Histogram(
		"pipeline.ocr.duration",
		metric.WithDescription("OCR duration per document in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingDuration, err := meter.Float64Histogram(
		"pipeline.embedding.duration",
		metric.WithDescription("Embedding duration per document in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Hybrid search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchBranchErrors, err := meter.Int64Counter(
		"search.branch.errors",
		metric.WithDescription("Failed lexical/vector search branches"),
	)
	if err != nil {
		return nil, err
	}

	paragraphsEmitted, err := meter.Int64Counter(
		"pipeline.paragraphs.emitted",
		metric.WithDescription("Paragraphs produced by the generator"),
	)
	if err != nil {
		return nil, err
	}

	scanOutcomes, err := meter.Int64Counter(
		"discovery.scan.outcomes",
		metric.WithDescription("Discovery work item outcomes by kind"),
	)
	if err != nil {
		return nil, err
	}

	classificationWarnings, err := meter.Int64Counter(
		"pipeline.classification.warnings",
		metric.WithDescription("Lines degraded to prose for missing geometry"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:         requestCounter,
		RequestDuration:        requestDuration,
		DocumentsIndexed:       documentsIndexed,
		OCRDuration:            ocrDuration,
		EmbeddingDuration:      embeddingDuration,
		SearchDuration:         searchDuration,
		SearchBranchErrors:     searchBranchErrors,
		ParagraphsEmitted:      paragraphsEmitted,
		ScanOutcomes:           scanOutcomes,
		ClassificationWarnings: classificationWarnings,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordDocumentIndexed records a completed document ingest
func (m *Metrics) RecordDocumentIndexed(language string, chunks int) {
	attrs := []attribute.KeyValue{
		attribute.String("doc.language", language),
		attribute.Int("doc.chunks", chunks),
	}

	m.DocumentsIndexed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSearchBranchError records a degraded lexical or vector branch
func (m *Metrics) RecordSearchBranchError(branch string) {
	attrs := []attribute.KeyValue{
		attribute.String("search.branch", branch),
	}

	m.SearchBranchErrors.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordScanOutcome records one discovery classification
func (m *Metrics) RecordScanOutcome(kind string) {
	attrs := []attribute.KeyValue{
		attribute.String("scan.kind", kind),
	}

	m.ScanOutcomes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
