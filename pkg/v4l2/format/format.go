package format

import (
	"fmt"
	"sort"
	"time"

	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

const TypeVideoCapture = 1 // V4L2_BUF_TYPE_VIDEO_CAPTURE

// StreamFormat is one physical capture configuration of the device
type StreamFormat struct {
	Type   uint32             `json:"-"`
	Format fourcc.PixelFormat `json:"format"`
	Width  int                `json:"width"`
	Height int                `json:"height"`
}

func New(f fourcc.PixelFormat, w, h int) StreamFormat {
	return StreamFormat{Type: TypeVideoCapture, Format: f, Width: w, Height: h}
}

func (s StreamFormat) String() string {
	return fmt.Sprintf("%s %dx%d", s.Format, s.Width, s.Height)
}

// Description is a catalogue entry with the frame duration range
type Description struct {
	StreamFormat
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FrameSize mirrors v4l2_frmsizeenum, Step* are zero for discrete sizes
type FrameSize struct {
	Discrete   bool
	Width      int
	Height     int
	MinWidth   int
	MaxWidth   int
	StepWidth  int
	MinHeight  int
	MaxHeight  int
	StepHeight int
}

type Fract struct {
	Numerator   uint32
	Denominator uint32
}

func (f Fract) Duration() time.Duration {
	if f.Denominator == 0 {
		return 0
	}
	return time.Duration(int64(time.Second) * int64(f.Numerator) / int64(f.Denominator))
}

// FrameInterval mirrors v4l2_frmivalenum
type FrameInterval struct {
	Discrete bool
	Value    Fract
	Min      Fract
	Max      Fract
	Step     Fract
}

type Enumerator interface {
	Formats() ([]fourcc.PixelFormat, error)
	FrameSizes(f fourcc.PixelFormat) ([]FrameSize, error)
	FrameIntervals(f fourcc.PixelFormat, w, h int) ([]FrameInterval, error)
}

// StandardSizes are probed on devices with stepwise or continuous sizes
var StandardSizes = []Size{
	{4096, 2160}, // 4KDCI (for USB camera)
	{3840, 2160}, // 4KUHD (for USB camera)
	{3280, 2464}, // 8MP
	{2560, 1440}, // QHD
	{1920, 1080}, // HD1080
	{1640, 1232}, // 2MP
	{1280, 720},  // HD
	{1024, 768},  // XGA
	{640, 480},   // VGA
	{320, 240},   // QVGA
	{176, 144},   // QCIF
}

func SupportedFormats(e Enumerator) ([]fourcc.PixelFormat, error) {
	formats, err := e.Formats()
	if err != nil {
		return nil, err
	}

	// device may repeat formats (emulated and native)
	var items []fourcc.PixelFormat
	for _, f := range formats {
		if !contains(items, f) {
			items = append(items, f)
		}
	}
	return items, nil
}

func Sizes(e Enumerator, f fourcc.PixelFormat) ([]Size, error) {
	frameSizes, err := e.FrameSizes(f)
	if err != nil {
		return nil, err
	}
	if len(frameSizes) == 0 {
		return nil, nil
	}

	var items []Size

	if fs := frameSizes[0]; !fs.Discrete {
		items = StepwiseSizes(fs)
	} else {
		for _, fs = range frameSizes {
			items = append(items, Size{fs.Width, fs.Height})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Width != items[j].Width {
			return items[i].Width < items[j].Width
		}
		return items[i].Height < items[j].Height
	})

	// remove duplicates, items are sorted
	n := 0
	for i, size := range items {
		if i > 0 && size == items[n-1] {
			continue
		}
		items[n] = size
		n++
	}

	return items[:n], nil
}

// StepwiseSizes rounds every standard size inside the range up to the step
func StepwiseSizes(fs FrameSize) []Size {
	stepW := max(fs.StepWidth, 1)
	stepH := max(fs.StepHeight, 1)

	var items []Size
	for _, size := range StandardSizes {
		if size.Width < fs.MinWidth || size.Height < fs.MinHeight {
			continue // too small
		}
		if size.Width > fs.MaxWidth || size.Height > fs.MaxHeight {
			continue // too big
		}

		stepsW := (size.Width - fs.MinWidth + stepW - 1) / stepW
		stepsH := (size.Height - fs.MinHeight + stepH - 1) / stepH

		items = append(items, Size{
			Width:  fs.MinWidth + stepsW*stepW,
			Height: fs.MinHeight + stepsH*stepH,
		})
	}
	return items
}

func DurationRange(e Enumerator, f fourcc.PixelFormat, w, h int) (min, max time.Duration, err error) {
	intervals, err := e.FrameIntervals(f, w, h)
	if err != nil {
		return 0, 0, err
	}
	if len(intervals) == 0 {
		return 0, 0, fmt.Errorf("format: no frame intervals for %s %dx%d", f, w, h)
	}

	if fi := intervals[0]; !fi.Discrete {
		return fi.Min.Duration(), fi.Max.Duration(), nil
	}

	min = intervals[0].Value.Duration()
	max = min
	for _, fi := range intervals[1:] {
		d := fi.Value.Duration()
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return
}

// Catalogue lists every supported format and size with its duration range.
// Formats whose sizes can't be read are skipped.
func Catalogue(e Enumerator) ([]Description, error) {
	formats, err := SupportedFormats(e)
	if err != nil {
		return nil, err
	}

	var items []Description
	for _, f := range formats {
		sizes, err := Sizes(e, f)
		if err != nil {
			continue
		}
		for _, size := range sizes {
			desc := Description{StreamFormat: New(f, size.Width, size.Height)}
			desc.MinDuration, desc.MaxDuration, _ = DurationRange(e, f, size.Width, size.Height)
			items = append(items, desc)
		}
	}
	return items, nil
}

// StreamFormats flattens the catalogue for matching helpers
func StreamFormats(items []Description) []StreamFormat {
	formats := make([]StreamFormat, len(items))
	for i, item := range items {
		formats[i] = item.StreamFormat
	}
	return formats
}

// FindExact returns index of the first format with same fourcc and size or -1
func FindExact(formats []StreamFormat, f fourcc.PixelFormat, w, h int) int {
	for i, format := range formats {
		if format.Format == f && format.Width == w && format.Height == h {
			return i
		}
	}
	return -1
}

// FindByResolution returns index of the first format with same size or -1
func FindByResolution(formats []StreamFormat, w, h int) int {
	for i, format := range formats {
		if format.Width == w && format.Height == h {
			return i
		}
	}
	return -1
}

// Qualified keeps supported streams of candidate formats in candidate
// priority order. The first stream for every resolution wins.
func Qualified(candidates []fourcc.PixelFormat, supported []StreamFormat) []StreamFormat {
	var items []StreamFormat

	for _, candidate := range candidates {
		for _, stream := range supported {
			if stream.Format != candidate {
				continue
			}
			if FindByResolution(items, stream.Width, stream.Height) >= 0 {
				continue
			}
			items = append(items, stream)
		}
	}

	return items
}

// QualifiedFormats keeps supported fourccs present in candidates,
// in candidates order
func QualifiedFormats(candidates, supported []fourcc.PixelFormat) []fourcc.PixelFormat {
	var items []fourcc.PixelFormat
	for _, candidate := range candidates {
		if contains(supported, candidate) && !contains(items, candidate) {
			items = append(items, candidate)
		}
	}
	return items
}

func contains(items []fourcc.PixelFormat, f fourcc.PixelFormat) bool {
	for _, item := range items {
		if item == f {
			return true
		}
	}
	return false
}
