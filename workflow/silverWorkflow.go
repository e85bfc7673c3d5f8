package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/mmdatafocus/ridelake_backend/models"
	"github.com/mmdatafocus/ridelake_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SilverBuilder turns staged bronze rows into the validated silver relations.
// Each entity goes through two steps: BuildBase (coerce, drop null keys,
// deduplicate) and Validate (row rules, accept/reject split).
type SilverBuilder struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	RunId  string
}

// BuildBase publishes silver_<entity>_base from the bronze staging rows and
// returns the published row count.
func (b *SilverBuilder) BuildBase(ctx context.Context, entity models.EntityType) (int64, error) {
	switch entity {
	case models.EntityTypeDrivers:
		return buildBaseFor(ctx, b, entity, (*models.BronzeDriver).ToSilverBase, models.DedupSilverDrivers)
	case models.EntityTypeVehicles:
		return buildBaseFor(ctx, b, entity, (*models.BronzeVehicle).ToSilverBase, models.DedupSilverVehicles)
	case models.EntityTypeRiders:
		return buildBaseFor(ctx, b, entity, (*models.BronzeRider).ToSilverBase, models.DedupSilverRiders)
	case models.EntityTypeTrips:
		return buildBaseFor(ctx, b, entity, (*models.BronzeTrip).ToSilverBase, models.DedupSilverTrips)
	case models.EntityTypePayments:
		return buildBaseFor(ctx, b, entity, (*models.BronzePayment).ToSilverBase, models.DedupSilverPayments)
	default:
		return 0, fmt.Errorf("unknown entity %s", entity)
	}
}

// Validate publishes silver_<entity> from the base relation and records every
// rejected row with its joined reasons. Returns (accepted, rejected).
func (b *SilverBuilder) Validate(ctx context.Context, entity models.EntityType) (int64, int64, error) {
	switch entity {
	case models.EntityTypeDrivers:
		return validateFor(ctx, b, entity, models.DriverValidationRules(), nil)
	case models.EntityTypeVehicles:
		return validateFor(ctx, b, entity, models.VehicleValidationRules(), nil)
	case models.EntityTypeRiders:
		return validateFor(ctx, b, entity, models.RiderValidationRules(), nil)
	case models.EntityTypeTrips:
		return validateFor(ctx, b, entity, models.TripValidationRules(), nil)
	case models.EntityTypePayments:
		return validateFor(ctx, b, entity, models.PaymentValidationRules(),
			(*models.SilverPayment).ApplyPaymentMethodNormalization)
	default:
		return 0, 0, fmt.Errorf("unknown entity %s", entity)
	}
}

func buildBaseFor[B any, S any](
	ctx context.Context,
	b *SilverBuilder,
	entity models.EntityType,
	toBase func(*B) (S, bool),
	dedup func([]S) []S,
) (int64, error) {
	var bronze []B
	if err := b.DB.WithContext(ctx).Order("id ASC").Find(&bronze).Error; err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", entity.BronzeTable(), err)
	}

	base := make([]S, 0, len(bronze))
	for i := range bronze {
		rec, ok := toBase(&bronze[i])
		if !ok {
			// No natural key, nothing downstream could join on it.
			continue
		}
		base = append(base, rec)
	}
	base = dedup(base)

	if err := publishRows(ctx, b.DB, entity.SilverBaseTable(), base); err != nil {
		return 0, err
	}

	b.logEtlStep(ctx, "create_base_"+string(entity), entity, entity.SilverBaseTable(),
		len(bronze), len(base), 0)
	b.Logger.WithFields(logrus.Fields{
		"run_id": b.RunId,
		"table":  entity.SilverBaseTable(),
		"input":  len(bronze),
		"output": len(base),
	}).Info("silver base build complete")
	return int64(len(base)), nil
}

func validateFor[S any](
	ctx context.Context,
	b *SilverBuilder,
	entity models.EntityType,
	rules []models.RowRule[S],
	normalize func(*S),
) (int64, int64, error) {
	var records []S
	err := b.DB.WithContext(ctx).
		Table(entity.SilverBaseTable()).
		Order(entity.KeyColumn() + " ASC").
		Find(&records).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", entity.SilverBaseTable(), err)
	}

	accepted := make([]S, 0, len(records))
	var rejectedRecords []S
	var rejectedReasons []string
	for i := range records {
		if normalize != nil {
			normalize(&records[i])
		}
		reasons := models.EvaluateRowRules(&records[i], rules)
		if len(reasons) == 0 {
			accepted = append(accepted, records[i])
			continue
		}
		rejectedRecords = append(rejectedRecords, records[i])
		rejectedReasons = append(rejectedReasons, models.JoinReasons(reasons))
	}

	if err := publishRows(ctx, b.DB, entity.SilverTable(), accepted); err != nil {
		return 0, 0, err
	}

	for i := range rejectedRecords {
		b.saveRejectedRow(ctx, entity.SilverTable(), rejectedRecords[i], rejectedReasons[i])
	}

	b.logEtlStep(ctx, "deep_validation_"+string(entity), entity, entity.SilverTable(),
		len(records), len(accepted), len(rejectedRecords))
	b.Logger.WithFields(logrus.Fields{
		"run_id":   b.RunId,
		"table":    entity.SilverTable(),
		"input":    len(records),
		"accepted": len(accepted),
		"rejected": len(rejectedRecords),
	}).Info("silver validation complete")
	return int64(len(accepted)), int64(len(rejectedRecords)), nil
}

// saveRejectedRow records one quarantined row. Audit inserts are best effort;
// a failed insert never fails the validation step.
func (b *SilverBuilder) saveRejectedRow(ctx context.Context, table string, record interface{}, reason string) {
	payload, err := utils.MarshalToJSON(record)
	if err != nil {
		config.LogError(b.Logger, "SilverWorkflow.go", "saveRejectedRow", "Marshal rejected row", table, err)
		return
	}
	row := models.AuditRejectedRow{
		Table:  table,
		Record: payload,
		Reason: reason,
		RunId:  b.RunId,
	}
	if err := b.DB.WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(b.Logger, "SilverWorkflow.go", "saveRejectedRow", "Insert rejected row", table, err)
	}
}

// logEtlStep appends one audit_etl_log entry. The checksum fingerprints the
// relation this step just published and is skipped for empty outputs; a
// checksum failure downgrades to a warning and a NULL column.
func (b *SilverBuilder) logEtlStep(
	ctx context.Context,
	step string,
	entity models.EntityType,
	checksumTable string,
	input, output, rejected int,
) {
	var checksum *string
	if output > 0 {
		sum, err := models.ComputeTableFingerprint(ctx, b.DB, checksumTable, entity.KeyColumn())
		if err != nil {
			b.Logger.WithFields(logrus.Fields{
				"run_id": b.RunId,
				"table":  checksumTable,
				"step":   step,
			}).Warn("checksum computation failed: " + err.Error())
		} else {
			checksum = &sum
		}
	}

	entry := models.AuditEtlLog{
		RunId:            b.RunId,
		RunTimestamp:     time.Now(),
		StepExecuted:     step,
		Table:            string(entity),
		InputRowCount:    input,
		OutputRowCount:   output,
		RejectedRowCount: rejected,
		DataChecksum:     checksum,
	}
	if err := b.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		config.LogError(b.Logger, "SilverWorkflow.go", "logEtlStep", "Insert etl log", step, err)
	}
}
