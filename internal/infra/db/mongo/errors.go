package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "rentacar/internal/domain/booking"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	codeWriteConflict         = 112
)

// mapTransient turns an aborted transaction into ErrConcurrentUpdate so
// callers can retry the whole unit instead of failing the request.
func mapTransient(err error) error {
	if err == nil {
		return nil
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorLabel(labelTransientTransaction) || serverErr.HasErrorCode(codeWriteConflict) {
			return fmt.Errorf("%w: %v", domainbooking.ErrConcurrentUpdate, err)
		}
	}
	return err
}
