package provider

import (
	"errors"
	"fmt"
)

// ErrNoEmail means the provider's identity endpoint answered without an email
// address we can key the account on
var ErrNoEmail = errors.New("provider identity has no email")

// StatusError is a non-2xx answer from the provider's resource APIs
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// IsAuthError reports whether err is a 401 from the provider, meaning the
// access token is expired or revoked
func IsAuthError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == 401
}
