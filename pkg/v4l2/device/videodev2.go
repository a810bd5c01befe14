package device

import (
	"unsafe"

	"github.com/AlexxIT/go2cam/pkg/ioctl"
)

// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h

var (
	VIDIOC_QUERYCAP = ioctl.IOR('V', 0, uint16(unsafe.Sizeof(v4l2_capability{})))
	VIDIOC_ENUM_FMT = ioctl.IORW('V', 2, uint16(unsafe.Sizeof(v4l2_fmtdesc{})))
	VIDIOC_G_FMT    = ioctl.IORW('V', 4, uint16(unsafe.Sizeof(v4l2_format{})))
	VIDIOC_S_FMT    = ioctl.IORW('V', 5, uint16(unsafe.Sizeof(v4l2_format{})))
	VIDIOC_REQBUFS  = ioctl.IORW('V', 8, uint16(unsafe.Sizeof(v4l2_requestbuffers{})))
	VIDIOC_QUERYBUF = ioctl.IORW('V', 9, uint16(unsafe.Sizeof(v4l2_buffer{})))

	VIDIOC_QBUF      = ioctl.IORW('V', 15, uint16(unsafe.Sizeof(v4l2_buffer{})))
	VIDIOC_EXPBUF    = ioctl.IORW('V', 16, uint16(unsafe.Sizeof(v4l2_exportbuffer{})))
	VIDIOC_DQBUF     = ioctl.IORW('V', 17, uint16(unsafe.Sizeof(v4l2_buffer{})))
	VIDIOC_STREAMON  = ioctl.IOW('V', 18, 4)
	VIDIOC_STREAMOFF = ioctl.IOW('V', 19, 4)
	VIDIOC_G_PARM    = ioctl.IORW('V', 21, uint16(unsafe.Sizeof(v4l2_streamparm{})))
	VIDIOC_S_PARM    = ioctl.IORW('V', 22, uint16(unsafe.Sizeof(v4l2_streamparm{})))
	VIDIOC_G_CTRL    = ioctl.IORW('V', 27, uint16(unsafe.Sizeof(v4l2_control{})))
	VIDIOC_S_CTRL    = ioctl.IORW('V', 28, uint16(unsafe.Sizeof(v4l2_control{})))
	VIDIOC_QUERYCTRL = ioctl.IORW('V', 36, uint16(unsafe.Sizeof(v4l2_queryctrl{})))

	VIDIOC_G_EXT_CTRLS         = ioctl.IORW('V', 71, uint16(unsafe.Sizeof(v4l2_ext_controls{})))
	VIDIOC_S_EXT_CTRLS         = ioctl.IORW('V', 72, uint16(unsafe.Sizeof(v4l2_ext_controls{})))
	VIDIOC_ENUM_FRAMESIZES     = ioctl.IORW('V', 74, uint16(unsafe.Sizeof(v4l2_frmsizeenum{})))
	VIDIOC_ENUM_FRAMEINTERVALS = ioctl.IORW('V', 75, uint16(unsafe.Sizeof(v4l2_frmivalenum{})))
	VIDIOC_QUERY_EXT_CTRL      = ioctl.IORW('V', 103, uint16(unsafe.Sizeof(v4l2_query_ext_ctrl{})))
)

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_BUF_FLAG_QUEUED        = 0x00000002
	V4L2_COLORSPACE_DEFAULT     = 0
	V4L2_FIELD_NONE             = 1
	V4L2_FRMIVAL_TYPE_DISCRETE  = 1
	V4L2_FRMSIZE_TYPE_DISCRETE  = 1
	V4L2_MEMORY_MMAP            = 1

	V4L2_CTRL_CLASS_USER          = 0x00980000
	V4L2_CTRL_FLAG_NEXT_CTRL      = 0x80000000
	V4L2_CTRL_FLAG_NEXT_COMPOUND  = 0x40000000
	V4L2_CTRL_TYPE_INTEGER64      = 5
	V4L2_CTRL_TYPE_STRING         = 7
	V4L2_CTRL_TYPE_BITMASK        = 8
	V4L2_CID_BRIGHTNESS           = 0x00980900
	V4L2_CID_EXPOSURE_ABSOLUTE    = 0x009a0902
	V4L2_CID_POWER_LINE_FREQUENCY = 0x00980918
)

func V4L2_CTRL_ID2CLASS(id uint32) uint32 {
	return id & 0x0fff0000
}

type v4l2_capability struct { // size 104
	driver       [16]byte  // offset 0, size 16
	card         [32]byte  // offset 16, size 32
	bus_info     [32]byte  // offset 48, size 32
	version      uint32    // offset 80, size 4
	capabilities uint32    // offset 84, size 4
	device_caps  uint32    // offset 88, size 4
	reserved     [3]uint32 // offset 92, size 12
}

type v4l2_pix_format struct { // size 48
	width        uint32 // offset 0, size 4
	height       uint32 // offset 4, size 4
	pixelformat  uint32 // offset 8, size 4
	field        uint32 // offset 12, size 4
	bytesperline uint32 // offset 16, size 4
	sizeimage    uint32 // offset 20, size 4
	colorspace   uint32 // offset 24, size 4
	priv         uint32 // offset 28, size 4
	flags        uint32 // offset 32, size 4
	ycbcr_enc    uint32 // offset 36, size 4
	quantization uint32 // offset 40, size 4
	xfer_func    uint32 // offset 44, size 4
}

type v4l2_streamparm struct { // size 204
	typ     uint32           // offset 0, size 4
	capture v4l2_captureparm // offset 4, size 40
	_       [160]byte        // filler
}

type v4l2_captureparm struct { // size 40
	capability   uint32     // offset 0, size 4
	capturemode  uint32     // offset 4, size 4
	timeperframe v4l2_fract // offset 8, size 8
	extendedmode uint32     // offset 16, size 4
	readbuffers  uint32     // offset 20, size 4
	reserved     [4]uint32  // offset 24, size 16
}

type v4l2_fract struct { // size 8
	numerator   uint32 // offset 0, size 4
	denominator uint32 // offset 4, size 4
}

type v4l2_requestbuffers struct { // size 20
	count        uint32   // offset 0, size 4
	typ          uint32   // offset 4, size 4
	memory       uint32   // offset 8, size 4
	capabilities uint32   // offset 12, size 4
	flags        uint8    // offset 16, size 1
	reserved     [3]uint8 // offset 17, size 3
}

type v4l2_timecode struct { // size 16
	typ      uint32   // offset 0, size 4
	flags    uint32   // offset 4, size 4
	frames   uint8    // offset 8, size 1
	seconds  uint8    // offset 9, size 1
	minutes  uint8    // offset 10, size 1
	hours    uint8    // offset 11, size 1
	userbits [4]uint8 // offset 12, size 4
}

type v4l2_exportbuffer struct { // size 64
	typ      uint32     // offset 0, size 4
	index    uint32     // offset 4, size 4
	plane    uint32     // offset 8, size 4
	flags    uint32     // offset 12, size 4
	fd       int32      // offset 16, size 4
	reserved [11]uint32 // offset 20, size 44
}

type v4l2_fmtdesc struct { // size 64
	index       uint32    // offset 0, size 4
	typ         uint32    // offset 4, size 4
	flags       uint32    // offset 8, size 4
	description [32]byte  // offset 12, size 32
	pixelformat uint32    // offset 44, size 4
	mbus_code   uint32    // offset 48, size 4
	reserved    [3]uint32 // offset 52, size 12
}

type v4l2_frmsizeenum struct { // size 44
	index        uint32    // offset 0, size 4
	pixel_format uint32    // offset 4, size 4
	typ          uint32    // offset 8, size 4
	union        [24]byte  // offset 12, size 24
	reserved     [2]uint32 // offset 36, size 8
}

func (fs *v4l2_frmsizeenum) discrete() *v4l2_frmsize_discrete {
	return (*v4l2_frmsize_discrete)(unsafe.Pointer(&fs.union))
}

func (fs *v4l2_frmsizeenum) stepwise() *v4l2_frmsize_stepwise {
	return (*v4l2_frmsize_stepwise)(unsafe.Pointer(&fs.union))
}

type v4l2_frmsize_discrete struct { // size 8
	width  uint32 // offset 0, size 4
	height uint32 // offset 4, size 4
}

type v4l2_frmsize_stepwise struct { // size 24
	min_width   uint32 // offset 0, size 4
	max_width   uint32 // offset 4, size 4
	step_width  uint32 // offset 8, size 4
	min_height  uint32 // offset 12, size 4
	max_height  uint32 // offset 16, size 4
	step_height uint32 // offset 20, size 4
}

type v4l2_frmivalenum struct { // size 52
	index        uint32    // offset 0, size 4
	pixel_format uint32    // offset 4, size 4
	width        uint32    // offset 8, size 4
	height       uint32    // offset 12, size 4
	typ          uint32    // offset 16, size 4
	union        [24]byte  // offset 20, size 24
	reserved     [2]uint32 // offset 44, size 8
}

func (fi *v4l2_frmivalenum) discrete() *v4l2_fract {
	return (*v4l2_fract)(unsafe.Pointer(&fi.union))
}

func (fi *v4l2_frmivalenum) stepwise() *v4l2_frmival_stepwise {
	return (*v4l2_frmival_stepwise)(unsafe.Pointer(&fi.union))
}

type v4l2_frmival_stepwise struct { // size 24
	min  v4l2_fract // offset 0, size 8
	max  v4l2_fract // offset 8, size 8
	step v4l2_fract // offset 16, size 8
}

type v4l2_control struct { // size 8
	id    uint32 // offset 0, size 4
	value int32  // offset 4, size 4
}

// packed in C, value shares the union with value64 and pointers
type v4l2_ext_control struct { // size 20
	id        uint32  // offset 0, size 4
	size      uint32  // offset 4, size 4
	reserved2 uint32  // offset 8, size 4
	value     int32   // offset 12, size 4
	_         [4]byte // union filler
}

type v4l2_queryctrl struct { // size 68
	id            uint32    // offset 0, size 4
	typ           uint32    // offset 4, size 4
	name          [32]byte  // offset 8, size 32
	minimum       int32     // offset 40, size 4
	maximum       int32     // offset 44, size 4
	step          int32     // offset 48, size 4
	default_value int32     // offset 52, size 4
	flags         uint32    // offset 56, size 4
	reserved      [2]uint32 // offset 60, size 8
}

type v4l2_query_ext_ctrl struct { // size 232
	id            uint32     // offset 0, size 4
	typ           uint32     // offset 4, size 4
	name          [32]byte   // offset 8, size 32
	minimum       int64      // offset 40, size 8
	maximum       int64      // offset 48, size 8
	step          uint64     // offset 56, size 8
	default_value int64      // offset 64, size 8
	flags         uint32     // offset 72, size 4
	elem_size     uint32     // offset 76, size 4
	elems         uint32     // offset 80, size 4
	nr_of_dims    uint32     // offset 84, size 4
	dims          [4]uint32  // offset 88, size 16
	reserved      [32]uint32 // offset 104, size 128
}
