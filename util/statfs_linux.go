// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package util

import "golang.org/x/sys/unix"

// DiskFreeBytes returns the bytes available to unprivileged users on the filesystem holding path
func DiskFreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
