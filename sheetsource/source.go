package sheetsource

import (
	"context"

	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/sirupsen/logrus"
)

// RowSource returns the ordered raw rows of one entity, header row skipped.
// Rows are position-significant string fields; providers never interpret
// cell contents.
type RowSource interface {
	FetchRows(ctx context.Context, entity models.EntityType) ([][]string, error)
}

// NewRowSource builds the provider selected by SOURCE_PROVIDER.
func NewRowSource(ctx context.Context, logger *logrus.Logger) (RowSource, error) {
	cfg, err := LoadSourceConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderWorkbook:
		return NewWorkbookSource(cfg, logger)
	default:
		return NewSheetsSource(ctx, cfg, logger)
	}
}

// skipHeader drops the header row of a fetched range.
func skipHeader(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}
