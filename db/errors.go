package db

import (
	"errors"

	"github.com/lib/pq"
)

const postgresSerializationFailureErrorCode = "40001"

// IsSerializationFailure reports whether a transaction lost a serialization
// conflict. The ledger does not retry internally; callers resubmit.
func IsSerializationFailure(err error) bool {
	var psqlErr *pq.Error
	return errors.As(err, &psqlErr) && psqlErr.Code == postgresSerializationFailureErrorCode
}
