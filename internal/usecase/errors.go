package usecase

import (
	"strings"

	"github.com/hashicorp/go-multierror"
)

// appendErr combines a primary error with a cleanup error. Either may be nil.
func appendErr(err, next error) error {
	if next == nil {
		return err
	}
	if err == nil {
		return next
	}
	merr := multierror.Append(err, next)
	merr.ErrorFormat = joinErrors
	return merr
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
