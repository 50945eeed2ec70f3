package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidToken is returned when the anti-forgery token is missing,
	// expired or bound to another session.
	ErrInvalidToken = errors.New("security check failed, please refresh the page and try again")

	// ErrInvalidRequest is returned when a request payload fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %s", name, e.Fields[name])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidRequest) hold for validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
