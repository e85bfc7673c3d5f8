package sheetsource

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/ridelake_backend/models"
)

const (
	ProviderSheets   = "sheets"
	ProviderWorkbook = "workbook"
)

var validate = validator.New()

// SourceConfig holds the connection details of the raw-data source.
type SourceConfig struct {
	Provider        string `validate:"required,oneof=sheets workbook"`
	SpreadsheetId   string `validate:"required_if=Provider sheets"`
	CredentialsFile string
	WorkbookPath    string                       `validate:"required_if=Provider workbook"`
	Ranges          map[models.EntityType]string `validate:"required,dive,required"`
}

// DefaultSheetRanges mirrors the tab layout of the source spreadsheet.
func DefaultSheetRanges() map[models.EntityType]string {
	return map[models.EntityType]string{
		models.EntityTypeDrivers:  "drivers!A:I",
		models.EntityTypeVehicles: "vehicles!A:J",
		models.EntityTypeRiders:   "riders!A:H",
		models.EntityTypeTrips:    "trips!A:R",
		models.EntityTypePayments: "payments!A:H",
	}
}

// LoadSourceConfig reads the source settings from the environment. Ranges
// default per entity and can be overridden one by one with
// SHEET_RANGE_<ENTITY>.
func LoadSourceConfig() (SourceConfig, error) {
	cfg := SourceConfig{
		Provider:        strings.TrimSpace(os.Getenv("SOURCE_PROVIDER")),
		SpreadsheetId:   strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		CredentialsFile: strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_FILE")),
		WorkbookPath:    strings.TrimSpace(os.Getenv("SOURCE_WORKBOOK_PATH")),
		Ranges:          DefaultSheetRanges(),
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderSheets
	}
	for _, entity := range models.AllEntityTypes {
		key := "SHEET_RANGE_" + strings.ToUpper(string(entity))
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.Ranges[entity] = v
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid source config: %w", err)
	}
	return cfg, nil
}

// sheetTitle extracts the tab name from an A1 range ("drivers!A:I" -> "drivers").
func sheetTitle(rangeName string) string {
	if i := strings.Index(rangeName, "!"); i >= 0 {
		return rangeName[:i]
	}
	return rangeName
}
