package tessella

import (
	"database/sql"
	"errors"

	"github.com/farant/smaragda/pkg/apperror"
)

// notFoundOrStoreErr classifies a bun query error as either a closed
// not-found result or an opaque store failure.
func notFoundOrStoreErr(err error, resourceKind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNotFound(resourceKind, id)
	}
	return apperror.NewStoreError(err)
}
