package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"tripdesk/internal/domain/shared/fault"
)

// ErrWriteConflict marks a transaction that lost a write race. The command
// can be retried in a fresh unit of work.
var ErrWriteConflict = fault.New(fault.Conflict, "concurrent write conflict, retry")

const writeConflictCode = 112

type labeled interface {
	HasErrorLabel(label string) bool
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	var l labeled
	if errors.As(err, &l) && l.HasErrorLabel("TransientTransactionError") {
		return errors.Join(ErrWriteConflict, err)
	}
	var cmd mongo.CommandError
	if errors.As(err, &cmd) && cmd.Code == writeConflictCode {
		return errors.Join(ErrWriteConflict, err)
	}
	return err
}
