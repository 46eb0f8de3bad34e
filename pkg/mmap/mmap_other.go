//go:build !linux && !darwin
// +build !linux,!darwin

package mmap

import (
	"errors"
)

func mmap(fd int, offset int64, length int, prot int, flags int) ([]byte, error) {
	return nil, errors.New("memory mapping not supported on this platform")
}

func munmap(b []byte) error {
	return nil
}

func madvise(b []byte, advice int) error {
	return nil
}

const (
	protRead  = 0
	mapShared = 0

	madvSequential = 0
	madvWillneed   = 0
)
