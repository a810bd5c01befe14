//go:build !386 && !arm

package device

import "unsafe"

type v4l2_format struct { // size 208
	typ uint32          // offset 0, size 4
	_   [4]byte         // align
	pix v4l2_pix_format // offset 8, size 48
	_   [152]byte       // filler
}

type v4l2_timeval struct { // size 16
	sec  int64 // offset 0, size 8
	usec int64 // offset 8, size 8
}

type v4l2_buffer struct { // size 88
	index      uint32        // offset 0, size 4
	typ        uint32        // offset 4, size 4
	bytesused  uint32        // offset 8, size 4
	flags      uint32        // offset 12, size 4
	field      uint32        // offset 16, size 4
	_          [4]byte       // align
	timestamp  v4l2_timeval  // offset 24, size 16
	timecode   v4l2_timecode // offset 40, size 16
	sequence   uint32        // offset 56, size 4
	memory     uint32        // offset 60, size 4
	offset     uint32        // offset 64, size 4
	_          [4]byte       // union filler
	length     uint32        // offset 72, size 4
	reserved2  uint32        // offset 76, size 4
	request_fd int32         // offset 80, size 4
	_          [4]byte       // filler
}

type v4l2_ext_controls struct { // size 32
	which      uint32         // offset 0, size 4
	count      uint32         // offset 4, size 4
	error_idx  uint32         // offset 8, size 4
	request_fd int32          // offset 12, size 4
	reserved   uint32         // offset 16, size 4
	_          [4]byte        // align
	controls   unsafe.Pointer // offset 24, size 8
}
