//go:build !unix

package frame

import "errors"

var errNoMmap = errors.New("frame: mmap not supported on this platform")

func mmap(int, int) ([]byte, error) { return nil, errNoMmap }
func munmap([]byte) error           { return errNoMmap }
func closeFD(int) error             { return nil }
