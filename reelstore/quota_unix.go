//go:build linux || darwin

package reelstore

import "golang.org/x/sys/unix"

// fsQuota reports the capacity of the filesystem holding the store file.
func fsQuota(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Blocks) * int64(st.Bsize), nil
}
