package scm

import (
	"errors"
	"fmt"
)

// NotFoundError reports that the change request is gone (HTTP 404 or
// 410) rather than merely slow or rate-limited. The worker loop (C10)
// treats this as a terminal FAILED outcome instead of retrying, since a
// deleted or force-pushed-away pull request will never succeed later.
type NotFoundError struct {
	Op  string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scm: %s: not found: %v", e.Op, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
