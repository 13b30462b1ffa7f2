package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"discourse-search-platform/internal/logger"
	"discourse-search-platform/models"
)

// ExportService writes corpus status reports from the state store.
type ExportService struct {
	store *StateStore
}

func NewExportService(store *StateStore) *ExportService {
	return &ExportService{store: store}
}

// WriteStatusReport renders one row per tracked file into an xlsx workbook at
// outPath and returns the row count.
func (es *ExportService) WriteStatusReport(ctx context.Context, outPath string) (int, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing report workbook", "error", err)
		}
	}()

	sheetName := "Corpus Status"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Path", "Status", "PDF SHA-256", "Config Hash", "Pages", "Size",
		"Modified", "Last Indexed", "Last Error",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	rows := 0
	err = es.store.All(ctx, func(state *models.FileState) error {
		row := rows + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), state.Path)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), string(state.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), state.PDFSha256)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), state.ConfigHash)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), state.Pages)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), state.Size)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), state.ModTime.Format("2006-01-02 15:04:05"))
		if !state.LastIndexedAt.IsZero() {
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), state.LastIndexedAt.Format("2006-01-02 15:04:05"))
		}
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), state.LastError)
		rows++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := f.SaveAs(outPath); err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	logger.Info("Status report written", "path", outPath, "rows", rows, "at", time.Now().Format(time.RFC3339))
	return rows, nil
}
