package ioctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ioctl returns raw unix.Errno so callers can match it with errors.Is
func Ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, err := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if err != 0 {
		return err
	}
	return nil
}
