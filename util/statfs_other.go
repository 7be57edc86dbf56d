// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

//go:build !linux
// +build !linux

package util

import "errors"

// DiskFreeBytes is only implemented on linux
func DiskFreeBytes(path string) (uint64, error) {
	return 0, errors.New("disk free space is not supported on this platform")
}
