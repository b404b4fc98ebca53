package store

import "errors"

// CloseAll closes every stream, continuing past failures, and returns all
// close errors joined. Nil entries are skipped.
func CloseAll(closers ...interface{ Close() error }) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
