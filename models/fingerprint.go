package models

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// fingerprintRowLimit bounds fingerprint cost on large relations. The hash
// is a drift tripwire, not a full integrity proof.
const fingerprintRowLimit = 1000

// ComputeTableFingerprint hashes up to fingerprintRowLimit rows of table,
// read in orderBy order. Each row is rendered canonically (column names
// sorted, values normalized) and hashed; the per-row hashes are sorted
// before the final hash, so the result does not depend on read order.
func ComputeTableFingerprint(ctx context.Context, db *gorm.DB, table string, orderBy string) (string, error) {
	var rows []map[string]interface{}
	err := db.WithContext(ctx).Table(table).Order(orderBy).Limit(fingerprintRowLimit).Find(&rows).Error
	if err != nil {
		return "", fmt.Errorf("fingerprint read of %s failed: %w", table, err)
	}

	rowHashes := make([]string, 0, len(rows))
	for _, row := range rows {
		rowHashes = append(rowHashes, hashRow(row))
	}
	sort.Strings(rowHashes)

	sum := md5.Sum([]byte(strings.Join(rowHashes, "")))
	return hex.EncodeToString(sum[:]), nil
}

func hashRow(row map[string]interface{}) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(canonicalValue(row[k]))
	}
	b.WriteByte('}')

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalValue renders one scanned column value deterministically. The
// MySQL driver hands most columns back as []byte, times as time.Time.
func canonicalValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []byte:
		return strconv.Quote(string(t))
	case string:
		return strconv.Quote(t)
	case time.Time:
		return strconv.Quote(t.UTC().Format("2006-01-02 15:04:05"))
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return strconv.Quote(fmt.Sprint(t))
		}
		return string(data)
	}
}
