package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// acquireSwapLock serializes publishes of one table across instances using
// MySQL advisory locks. The run lock already serializes whole pipelines when
// Redis is up; this guards the rename itself when it is not.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// connection that performs the rename.
func acquireSwapLock(conn *gorm.DB, table string) error {
	lockName := fmt.Sprintf("swap:%s", table)
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire swap lock for table=%s", table)
	}
	return nil
}

func releaseSwapLock(conn *gorm.DB, table string) {
	lockName := fmt.Sprintf("swap:%s", table)
	var _ok int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
