//go:build unix

package simplefs

import (
	"os"

	"golang.org/x/sys/unix"
)

// IsBlockDevice reports whether path names a block device, for the
// mkfs-simplefs CLI's ENODEV check (spec §6). A regular file is also
// accepted by callers that opt into the userspace rewrite's
// raw-file-backed mode; this helper only answers the block-device question.
func IsBlockDevice(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

// IsRegularFile reports whether path names a regular file.
func IsRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
