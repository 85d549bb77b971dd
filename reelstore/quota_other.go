//go:build !linux && !darwin

package reelstore

import "errors"

// fsQuota reports the capacity of the filesystem holding the store file.
// Not available on this platform.
func fsQuota(string) (int64, error) {
	return 0, errors.ErrUnsupported
}
