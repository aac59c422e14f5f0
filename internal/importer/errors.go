package importer

import (
	"errors"
	"fmt"
)

// ErrUnknownMode indicates an import mode other than merge or replace.
var ErrUnknownMode = errors.New("unknown import mode")

// TransactionError wraps any failure during import processing. The whole
// unit of work is rolled back; no partial writes survive.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("import transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
