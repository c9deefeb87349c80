package meltsenv

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the load operations. All of them are terminal:
// a failed load never leaves a partially applied table behind.
var (
	// ErrEnvNotFound indicates the environment file does not exist
	ErrEnvNotFound = errors.New("environment file not found")

	// ErrMalformedLine indicates a data line without a value token.
	// The concrete error is a *MalformedLineError carrying the line number.
	ErrMalformedLine = errors.New("malformed environment line")

	// ErrOverrideParse indicates invalid command-line override arguments
	ErrOverrideParse = errors.New("failed to parse override arguments")

	// ErrValueSize indicates an environment variable value exceeding MaxValueSize
	ErrValueSize = errors.New("value exceeds maximum allowed size")
)

// MaxValueSize bounds individual values taken from the process environment.
const MaxValueSize = 64 * 1024

// MalformedLineError reports a data line that has a key token but no value.
// Line numbers are 1-based physical line numbers of the input.
type MalformedLineError struct {
	Line int
	Text string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: missing value for key %q", e.Line, e.Text)
}

// Is allows errors.Is(err, ErrMalformedLine) to match.
func (e *MalformedLineError) Is(target error) bool {
	return target == ErrMalformedLine
}
