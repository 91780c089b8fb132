package badger

import (
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/reperio/internal/interfaces"
)

// Sentinel errors storage callers branch on. Unique violations surface as
// ErrDuplicate so parallel inserters can resolve them as a duplicate outcome
// instead of a failure. Domain clashes use interfaces.ErrDuplicateDomain so
// services can branch on them without importing this package.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFound reports whether an error means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, badgerhold.ErrNotFound)
}

// IsDuplicate reports whether an error is a uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate) ||
		errors.Is(err, interfaces.ErrDuplicateDomain) ||
		errors.Is(err, badgerhold.ErrKeyExists) ||
		errors.Is(err, badgerhold.ErrUniqueExists)
}
