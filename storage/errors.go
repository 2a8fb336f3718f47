package storage

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// IsSerializationError classifies a write failure as a transient
// serialization/deadlock conflict worth retrying. v3/runtime/transaction.go
// carries an isSerializationError stub that always returns false; this is
// that stub completed for the lib/pq driver, using the same PostgreSQL
// error-code classification idiom as v3/runtime/errors.go's ClassifyError.
func IsSerializationError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	// Fallback for drivers that don't surface a typed error (the in-memory
	// fake, mysql) but still mention the condition in the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "serialization failure") || strings.Contains(msg, "deadlock")
}
