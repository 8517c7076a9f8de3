package mongo

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	"homestay/internal/app/apperr"
	"homestay/internal/app/uow"
)

func TestLockErrorTurnsWriteConflictsIntoRetryableConflicts(t *testing.T) {
	conflict := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	err := lockError(conflict)
	if !errors.Is(err, uow.ErrTransient) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected a retryable conflict, got %v", err)
	}

	other := mongo.CommandError{Code: 13, Name: "Unauthorized"}
	if err := lockError(other); errors.Is(err, uow.ErrTransient) {
		t.Fatalf("non-transient error marked retryable: %v", err)
	}
}
