package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/internal/logger"
	"discourse-search-platform/models"
)

// OCRClient talks to the external OCR service (Tesseract or Cloud Vision
// behind the same HTTP facade) and normalizes its word geometry into lines.
type OCRClient struct {
	config     *config.Config
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	cache      *OCRPageCache
}

// ocrWord is one recognized word with page-pixel geometry.
type ocrWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X0         float64 `json:"x0"`
	Y0         float64 `json:"y0"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
}

// ocrPage is the per-page payload from the OCR service.
type ocrPage struct {
	Page   int       `json:"page"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Words  []ocrWord `json:"words"`
}

// ocrResponse is the OCR service reply for a whole document.
type ocrResponse struct {
	Success bool      `json:"success"`
	Pages   []ocrPage `json:"pages"`
	Error   string    `json:"error,omitempty"`
}

// ocrHealthResponse represents the health check response
type ocrHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewOCRClient creates a new OCR client
func NewOCRClient(cfg *config.Config, cache *OCRPageCache) *OCRClient {
	baseURL := cfg.OCRServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OCRService",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &OCRClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.OCRTimeout,
		},
		baseURL: baseURL,
		breaker: breaker,
		cache:   cache,
	}
}

// IsHealthy checks if the OCR service is healthy
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var healthResp ocrHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return healthResp.Status == "healthy", nil
}

// ExtractLines runs OCR over the whole PDF and returns the ordered line
// stream plus per-page geometry. Results come from the page cache when the
// same content hash was processed with the same engine before.
func (c *OCRClient) ExtractLines(ctx context.Context, filePath, pdfSha string, cfg *models.ResolvedConfig) ([]models.Line, map[int]models.PageGeometry, error) {
	if c.cache != nil {
		pages, err := c.cache.Get(ctx, pdfSha, cfg.OCREngine)
		if err != nil {
			logger.Warn("OCR cache read failed", "path", filePath, "error", err)
		} else if len(pages) > 0 {
			return c.buildLines(pages, cfg)
		}
	}

	pages, err := c.extract(ctx, filePath, cfg)
	if err != nil {
		return nil, nil, WrapError(KindOCR, filePath, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, pdfSha, cfg.OCREngine, pages); err != nil {
			logger.Warn("OCR cache write failed", "path", filePath, "error", err)
		}
	}

	return c.buildLines(pages, cfg)
}

// extract posts the PDF to the OCR service.
func (c *OCRClient) extract(ctx context.Context, filePath string, cfg *models.ResolvedConfig) ([]ocrPage, error) {
	healthy, err := c.IsHealthy(ctx)
	if err != nil {
		return nil, fmt.Errorf("OCR service health check failed: %w", err)
	}
	if !healthy {
		return nil, fmt.Errorf("OCR service is not healthy")
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(fileData)); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}

	writer.WriteField("language", cfg.Language)
	writer.WriteField("engine", cfg.OCREngine)
	writer.WriteField("confidence_threshold", fmt.Sprintf("%.2f", c.config.OCRConfidenceThreshold))
	writer.WriteField("crop_top_pct", fmt.Sprintf("%.2f", cfg.CropTopPct))
	writer.WriteField("crop_bottom_pct", fmt.Sprintf("%.2f", cfg.CropBottomPct))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("OCR request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var ocrResp ocrResponse
		if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
			return nil, fmt.Errorf("failed to decode OCR response: %w", err)
		}
		if !ocrResp.Success {
			return nil, fmt.Errorf("OCR processing failed: %s", ocrResp.Error)
		}
		return ocrResp.Pages, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]ocrPage), nil
}

// buildLines filters low-confidence words, clusters the rest into lines by
// vertical overlap, and derives each page's printable margins.
func (c *OCRClient) buildLines(pages []ocrPage, cfg *models.ResolvedConfig) ([]models.Line, map[int]models.PageGeometry, error) {
	var lines []models.Line
	geometry := make(map[int]models.PageGeometry)

	for _, page := range pages {
		words := make([]ocrWord, 0, len(page.Words))
		for _, w := range page.Words {
			if w.Confidence >= c.config.OCRConfidenceThreshold && w.Text != "" {
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			continue
		}

		pageLines := clusterWords(words, page.Page)
		lines = append(lines, pageLines...)

		geo := models.PageGeometry{LeftMargin: page.Width, Width: page.Width}
		for _, l := range pageLines {
			if l.XStart < geo.LeftMargin {
				geo.LeftMargin = l.XStart
			}
			if l.XEnd > geo.RightMargin {
				geo.RightMargin = l.XEnd
			}
		}
		geometry[page.Page] = geo
	}

	return lines, geometry, nil
}

// clusterWords groups words into lines by y-center proximity, then orders
// each line left to right.
func clusterWords(words []ocrWord, pageNum int) []models.Line {
	sort.Slice(words, func(i, j int) bool {
		yi := (words[i].Y0 + words[i].Y1) / 2
		yj := (words[j].Y0 + words[j].Y1) / 2
		if yi != yj {
			return yi < yj
		}
		return words[i].X0 < words[j].X0
	})

	var lines []models.Line
	var current []ocrWord

	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.Slice(current, func(i, j int) bool { return current[i].X0 < current[j].X0 })

		line := models.Line{PageNum: pageNum, XStart: current[0].X0, YStart: current[0].Y0}
		var text bytes.Buffer
		for i, w := range current {
			if i > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(w.Text)
			if w.X1 > line.XEnd {
				line.XEnd = w.X1
			}
			if w.Y0 < line.YStart {
				line.YStart = w.Y0
			}
			if w.Y1 > line.YEnd {
				line.YEnd = w.Y1
			}
		}
		line.Text = text.String()
		lines = append(lines, line)
		current = nil
	}

	for _, w := range words {
		if len(current) == 0 {
			current = append(current, w)
			continue
		}

		// Same line when the word's vertical center falls inside the
		// running line's band.
		last := current[len(current)-1]
		bandTop, bandBottom := last.Y0, last.Y1
		for _, cw := range current {
			if cw.Y0 < bandTop {
				bandTop = cw.Y0
			}
			if cw.Y1 > bandBottom {
				bandBottom = cw.Y1
			}
		}
		center := (w.Y0 + w.Y1) / 2
		if center >= bandTop && center <= bandBottom {
			current = append(current, w)
		} else {
			flush()
			current = append(current, w)
		}
	}
	flush()

	return lines
}
