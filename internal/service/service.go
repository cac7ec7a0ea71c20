// Package service exposes the operations external callers use: analyzing a
// listing, submitting price samples and driving the collection queue.
package service

import "github.com/listing-trust/internal/errors"

func isValidation(err error) bool {
	return errors.Categorize(err).Category == errors.CategoryValidation
}
