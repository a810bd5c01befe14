package convert

import (
	"image"
	"image/color"

	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"golang.org/x/image/draw"
)

// planes splits planar 4:2:0 data with tight strides
func planes(b []byte, w, h int) (y, u, v []byte) {
	i1 := w * h
	i2 := i1 + i1/4
	i3 := i2 + i1/4
	return b[:i1], b[i1:i2], b[i2:i3]
}

func newYCbCr(b []byte, w, h int) *image.YCbCr {
	y, u, v := planes(b, w, h)
	return &image.YCbCr{
		Y:              y,
		Cb:             u,
		Cr:             v,
		YStride:        w,
		CStride:        w / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}
}

func newGray(b []byte, w, h int) *image.Gray {
	return &image.Gray{Pix: b, Stride: w, Rect: image.Rect(0, 0, w, h)}
}

// scalePlane is nearest neighbour, chroma is never interpolated
func scalePlane(dst []byte, dw, dh int, src []byte, sw, sh int) {
	d := newGray(dst, dw, dh)
	s := newGray(src, sw, sh)
	draw.NearestNeighbor.Scale(d, d.Rect, s, s.Rect, draw.Src, nil)
}

// imageToI420 writes any decoded image as tight planar 4:2:0
func imageToI420(dst []byte, img image.Image) {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	y, u, v := planes(dst, w, h)

	switch img := img.(type) {
	case *image.YCbCr:
		for row := 0; row < h; row++ {
			i := img.YOffset(r.Min.X, r.Min.Y+row)
			copy(y[row*w:(row+1)*w], img.Y[i:i+w])
		}
		for row := 0; row < h/2; row++ {
			for col := 0; col < w/2; col++ {
				i := img.COffset(r.Min.X+col*2, r.Min.Y+row*2)
				u[row*w/2+col] = img.Cb[i]
				v[row*w/2+col] = img.Cr[i]
			}
		}
	case *image.Gray:
		for row := 0; row < h; row++ {
			i := img.PixOffset(r.Min.X, r.Min.Y+row)
			copy(y[row*w:(row+1)*w], img.Pix[i:i+w])
		}
		for i := range u {
			u[i] = 128
			v[i] = 128
		}
	default:
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				c := color.YCbCrModel.Convert(img.At(r.Min.X+col, r.Min.Y+row)).(color.YCbCr)
				y[row*w+col] = c.Y
				if row%2 == 0 && col%2 == 0 {
					u[row/2*w/2+col/2] = c.Cb
					v[row/2*w/2+col/2] = c.Cr
				}
			}
		}
	}
}

// yuyvToI420 keeps luma and averages chroma of each pair of rows
func yuyvToI420(dst, src []byte, w, h int) {
	y, u, v := planes(dst, w, h)
	stride := w * 2

	iy := 0
	for i := 0; i < stride*h; i += 2 {
		y[iy] = src[i]
		iy++
	}

	iuv := 0
	for row := 0; row < h; row += 2 {
		i0 := row * stride
		i1 := i0 + stride
		for col := 0; col < stride; col += 4 {
			u[iuv] = byte((int(src[i0+col+1]) + int(src[i1+col+1]) + 1) >> 1)
			v[iuv] = byte((int(src[i0+col+3]) + int(src[i1+col+3]) + 1) >> 1)
			iuv++
		}
	}
}

// i420ToRGBA writes R,G,B,A bytes, swap exchanges R and B
func i420ToRGBA(dst, src []byte, w, h int, swap bool) {
	rgba := &image.RGBA{Pix: dst, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(rgba, rgba.Rect, newYCbCr(src, w, h), image.Point{}, draw.Src)

	if swap {
		for i := 0; i < len(dst); i += 4 {
			dst[i], dst[i+2] = dst[i+2], dst[i]
		}
	}
}

func i420ToYV12(dst, src []byte, w, h int) {
	y, u, v := planes(src, w, h)
	ys := fourcc.Align16(w)
	uvs := fourcc.Align16(w / 2)

	for row := 0; row < h; row++ {
		copy(dst[row*ys:], y[row*w:(row+1)*w])
	}
	// V plane goes first
	vOff := ys * h
	uOff := vOff + uvs*h/2
	for row := 0; row < h/2; row++ {
		copy(dst[vOff+row*uvs:], v[row*w/2:(row+1)*w/2])
		copy(dst[uOff+row*uvs:], u[row*w/2:(row+1)*w/2])
	}
}

func i420ToNV21(dst, src []byte, w, h int) {
	y, u, v := planes(src, w, h)
	n := copy(dst, y)
	for i := range v {
		dst[n] = v[i]
		dst[n+1] = u[i]
		n += 2
	}
}
