package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrTransmission indicates the reply didn't verify against the request.
	ErrTransmission = errors.New("transmission error")
	// ErrNoLink indicates the session has no link attached.
	ErrNoLink = errors.New("no link")
)

// EnumerationError reports an implausible number of dispensers
// discovered after a bus reset.
type EnumerationError struct {
	Count    int
	Max      int
	Attempts int
}

// Error implements error.
func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumeration found %d dispensers (max %d) after %d attempts", e.Count, e.Max, e.Attempts)
}
