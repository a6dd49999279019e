package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// CashSessionLockKey builds the redis key serialising cash session opens.
func CashSessionLockKey(storeID uuid.UUID) string {
	return fmt.Sprintf("cash-session:store:%s:lock", storeID)
}
