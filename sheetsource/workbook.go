package sheetsource

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads entity sheets from a local .xlsx workbook. It serves
// offline backfills and tests where the Sheets API is unreachable.
type WorkbookSource struct {
	logger *logrus.Logger
	path   string
	ranges map[models.EntityType]string
}

func NewWorkbookSource(cfg SourceConfig, logger *logrus.Logger) (*WorkbookSource, error) {
	return &WorkbookSource{
		logger: logger,
		path:   cfg.WorkbookPath,
		ranges: cfg.Ranges,
	}, nil
}

func (w *WorkbookSource) FetchRows(ctx context.Context, entity models.EntityType) ([][]string, error) {
	rangeName, ok := w.ranges[entity]
	if !ok {
		return nil, fmt.Errorf("no sheet range configured for %s", entity)
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", w.path, err)
	}
	defer f.Close()

	sheet := sheetTitle(rangeName)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	data := skipHeader(rows)
	w.logger.WithFields(logrus.Fields{
		"sheet": sheet,
		"rows":  len(data),
	}).Info("fetched source rows")
	return data, nil
}
