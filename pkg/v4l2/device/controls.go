//go:build linux

package device

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/AlexxIT/go2cam/pkg/ioctl"
	"golang.org/x/sys/unix"
)

func (d *Device) QueryControl(id uint32) (*Control, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.extQuery {
		q := v4l2_query_ext_ctrl{id: id}
		err := d.ioctl(VIDIOC_QUERY_EXT_CTRL, unsafe.Pointer(&q))
		if err == nil {
			return &Control{
				ID:       q.id,
				Type:     q.typ,
				Name:     ioctl.Str(q.name[:]),
				Minimum:  q.minimum,
				Maximum:  q.maximum,
				Step:     q.step,
				Default:  q.default_value,
				Flags:    q.flags,
				ElemSize: q.elem_size,
				Elems:    q.elems,
			}, nil
		}
		if !errors.Is(err, unix.ENOTTY) {
			return nil, fmt.Errorf("v4l2: query control 0x%08x: %w", id, err)
		}
	}

	q := v4l2_queryctrl{id: id}
	if err := d.ioctl(VIDIOC_QUERYCTRL, unsafe.Pointer(&q)); err != nil {
		return nil, fmt.Errorf("v4l2: query control 0x%08x: %w", id, err)
	}

	return legacyControl(&q), nil
}

func legacyControl(q *v4l2_queryctrl) *Control {
	c := &Control{
		ID:      q.id,
		Type:    q.typ,
		Name:    ioctl.Str(q.name[:]),
		Minimum: int64(q.minimum),
		Maximum: int64(q.maximum),
		Step:    uint64(q.step),
		Default: int64(q.default_value),
		Flags:   q.flags,
		Elems:   1,
	}

	switch q.typ {
	case V4L2_CTRL_TYPE_BITMASK:
		// bitmask limits are unsigned
		c.Maximum = int64(uint32(q.maximum))
		c.Default = int64(uint32(q.default_value))
		c.ElemSize = 4
	case V4L2_CTRL_TYPE_INTEGER64:
		c.ElemSize = 8
	case V4L2_CTRL_TYPE_STRING:
		c.ElemSize = uint32(q.maximum) + 1
	default:
		c.ElemSize = 4
	}

	return c
}

// Controls walks all controls with the NEXT_CTRL flag
func (d *Device) Controls() ([]*Control, error) {
	var items []*Control

	for id := uint32(0); ; {
		c, err := d.QueryControl(id | V4L2_CTRL_FLAG_NEXT_CTRL)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			return nil, err
		}
		items = append(items, c)
		id = c.ID
	}

	return items, nil
}

func (d *Device) Control(id uint32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if class := V4L2_CTRL_ID2CLASS(id); class != V4L2_CTRL_CLASS_USER {
		ec := v4l2_ext_control{id: id}
		ecs := v4l2_ext_controls{which: class, count: 1, controls: unsafe.Pointer(&ec)}
		if err := d.ioctl(VIDIOC_G_EXT_CTRLS, unsafe.Pointer(&ecs)); err != nil {
			return 0, fmt.Errorf("v4l2: get control 0x%08x: %w", id, err)
		}
		return ec.value, nil
	}

	c := v4l2_control{id: id}
	if err := d.ioctl(VIDIOC_G_CTRL, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("v4l2: get control 0x%08x: %w", id, err)
	}
	return c.value, nil
}

// SetControl returns the value the driver actually applied
func (d *Device) SetControl(id uint32, value int32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if class := V4L2_CTRL_ID2CLASS(id); class != V4L2_CTRL_CLASS_USER {
		ec := v4l2_ext_control{id: id, value: value}
		ecs := v4l2_ext_controls{which: class, count: 1, controls: unsafe.Pointer(&ec)}
		if err := d.ioctl(VIDIOC_S_EXT_CTRLS, unsafe.Pointer(&ecs)); err != nil {
			return 0, fmt.Errorf("v4l2: set control 0x%08x: %w", id, err)
		}
		return ec.value, nil
	}

	c := v4l2_control{id: id, value: value}
	if err := d.ioctl(VIDIOC_S_CTRL, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("v4l2: set control 0x%08x: %w", id, err)
	}
	return c.value, nil
}
