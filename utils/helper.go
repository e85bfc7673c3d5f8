package utils

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/ridelake_backend/config"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// IsValidPlate accepts upper-case alphanumeric plates with hyphens, 3-12 chars.
// Plates are upper-cased during coercion, so the pattern has no lower-case range.
func IsValidPlate(plate string) bool {
	pattern := `^[A-Z0-9\-]{3,12}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(plate)
}

// TitleCase normalizes free-text fields the way INITCAP does ("gran TURISMO"
// -> "Gran Turismo"). A fresh caser per call: cases.Caser is not safe for
// concurrent use.
func TitleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace and check for empty strings
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// Convert string to decimal
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ZeroIfNull folds an absent decimal to zero. Validation arithmetic treats
// missing numeric fields as zero rather than failing the whole expression.
func ZeroIfNull(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}

// AcquireRunLock obtains the named mutex for the duration of a pipeline run.
// The caller owns the returned lock and must Release it when the run ends.
// Returns ErrPipelineLocked when another run holds it.
func AcquireRunLock(ctx context.Context, lockKey string, ttl time.Duration, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis is optional for one-shot local runs.
		logger.WithField("lockKey", lockKey).Warn("redis lock not initialized; running without run lock")
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		cid, _ := GetCorrelationIdFromContext(ctx)
		config.LogError(logger, moduleName, functionName, "Could not obtain run lock, correlation_id="+cid, lockKey, err)
		return nil, ErrPipelineLocked
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining run lock", lockKey, err)
		return nil, err
	}
	return lock, nil
}
