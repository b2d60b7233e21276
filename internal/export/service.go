package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/repository"
)

// Service produces XLSX bytes for history exports.
type Service struct {
	historyRepo repository.HistoryRepository
	logger      *slog.Logger
}

func NewService(repo repository.HistoryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{historyRepo: repo, logger: logger}
}

const sheet = "History"

// maxCellText is below Excel's 32767-character cell limit.
const maxCellText = 32000

// ExportHistoryXLSX returns an XLSX workbook (as bytes) of history items matching filter,
// newest first.
func (s *Service) ExportHistoryXLSX(ctx context.Context, filter repository.HistoryFilter) ([]byte, error) {
	start := time.Now()

	items, err := s.historyRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	buf, err := WriteHistoryXLSX(items)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"kind", filter.Kind,
		"rows", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// WriteHistoryXLSX renders items with columns Date, Kind, File, Status, Text.
func WriteHistoryXLSX(items []*entity.HistoryItem) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Date", "Kind", "File", "Status", "Text"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, it := range items {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, it.CreatedAt.Local().Format("2006-01-02 15:04"))
		write(2, string(it.Kind))
		file := it.Filename
		if file == "" {
			file = it.SourcePath
		}
		write(3, file)
		write(4, string(it.Status))
		text := it.ResultText
		if text == "" {
			text = it.ErrorMessage
		}
		write(5, truncate(text, maxCellText))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // date
	_ = f.SetColWidth(sheet, "B", "B", 8)  // kind
	_ = f.SetColWidth(sheet, "C", "C", 32) // file
	_ = f.SetColWidth(sheet, "D", "D", 12) // status
	_ = f.SetColWidth(sheet, "E", "E", 80) // text

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
