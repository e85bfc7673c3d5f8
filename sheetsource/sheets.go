package sheetsource

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads entity ranges from a Google Sheets spreadsheet.
type SheetsSource struct {
	service       *sheets.Service
	logger        *logrus.Logger
	spreadsheetId string
	ranges        map[models.EntityType]string
}

// NewSheetsSource authenticates against the Sheets API. Credentials come from
// SHEETS_CREDENTIALS_FILE, then SHEETS_CREDENTIALS_JSON, then Application
// Default Credentials.
func NewSheetsSource(ctx context.Context, cfg SourceConfig, logger *logrus.Logger) (*SheetsSource, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else if blob := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_JSON")); blob != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(blob)))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsSource{
		service:       service,
		logger:        logger,
		spreadsheetId: cfg.SpreadsheetId,
		ranges:        cfg.Ranges,
	}, nil
}

func (s *SheetsSource) FetchRows(ctx context.Context, entity models.EntityType) ([][]string, error) {
	rangeName, ok := s.ranges[entity]
	if !ok {
		return nil, fmt.Errorf("no sheet range configured for %s", entity)
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetId, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch range %s: %w", rangeName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}

	data := skipHeader(rows)
	s.logger.WithFields(logrus.Fields{
		"range": rangeName,
		"rows":  len(data),
	}).Info("fetched source rows")
	return data, nil
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	return fmt.Sprint(cell)
}
