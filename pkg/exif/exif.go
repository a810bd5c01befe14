package exif

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	goexif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// MaxAPP1 is the limit of APP1 payload, two bytes of the segment
// are taken by the length field
const MaxAPP1 = 65533

const header = "Exif\x00\x00"

var (
	ErrInvalid  = errors.New("exif: invalid argument")
	ErrTooLarge = errors.New("exif: APP1 segment too large")
)

const (
	tagExifVersion         = 0x9000
	tagGPSProcessingMethod = 0x001B
)

const focalPrecision = 10000

// table 9 of Exif 2.3, character code of the undefined text
var asciiPrefix = []byte{'A', 'S', 'C', 'I', 'I', 0, 0, 0}

var order = binary.LittleEndian

type GPS struct {
	Latitude         float64
	Longitude        float64
	Altitude         float64
	Timestamp        time.Time
	ProcessingMethod string
}

type Info struct {
	Make        string
	Model       string
	Time        time.Time
	Width       int
	Height      int
	Orientation int     // degrees clockwise
	FocalLength float64 // millimeters
	GPS         *GPS
	// Thumbnail is a ready JPEG for IFD1
	Thumbnail []byte
}

// Orientation converts degrees to TIFF orientation tag value
func Orientation(degrees int) uint16 {
	switch degrees {
	case 90:
		return 6
	case 180:
		return 3
	case 270:
		return 8
	}
	return 1
}

var (
	tablesOnce sync.Once
	ifdMapping *exifcommon.IfdMapping
	tagIndex   *goexif.TagIndex
	tablesErr  error
)

func tables() (*exifcommon.IfdMapping, *goexif.TagIndex, error) {
	tablesOnce.Do(func() {
		ifdMapping, tablesErr = exifcommon.NewIfdMappingWithStandard()
		tagIndex = goexif.NewTagIndex()
	})
	return ifdMapping, tagIndex, tablesErr
}

type tag struct {
	name  string
	value any
}

// add keeps tags in the order given, callers pass them sorted by id
func add(ib *goexif.IfdBuilder, tags ...tag) error {
	for _, t := range tags {
		if err := ib.AddStandardWithName(t.name, t.value); err != nil {
			return fmt.Errorf("exif: %s: %w", t.name, err)
		}
	}
	return nil
}

func addUndefined(ib *goexif.IfdBuilder, ii *exifcommon.IfdIdentity, id uint16, b []byte) error {
	path := ii.UnindexedString()
	value := goexif.NewIfdBuilderTagValueFromBytes(b)
	return ib.Add(goexif.NewBuilderTag(path, id, exifcommon.TypeUndefined, value, order))
}

func rational(num, den uint32) exifcommon.Rational {
	return exifcommon.Rational{Numerator: num, Denominator: den}
}

func timestamp(t time.Time) string {
	return t.Format("2006:01:02 15:04:05")
}

// Build returns APP1 payload: Exif header and little-endian TIFF
func Build(info *Info) ([]byte, error) {
	if info.Width <= 0 || info.Height <= 0 || info.Width > math.MaxUint16 || info.Height > math.MaxUint16 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalid, info.Width, info.Height)
	}

	im, ti, err := tables()
	if err != nil {
		return nil, err
	}

	ifd0 := goexif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, order)

	tags := []tag{
		{"ImageWidth", []uint32{uint32(info.Width)}},
		{"ImageLength", []uint32{uint32(info.Height)}},
	}
	if info.Make != "" {
		tags = append(tags, tag{"Make", info.Make})
	}
	if info.Model != "" {
		tags = append(tags, tag{"Model", info.Model})
	}
	tags = append(tags, tag{"Orientation", []uint16{Orientation(info.Orientation)}})
	if !info.Time.IsZero() {
		tags = append(tags, tag{"DateTime", timestamp(info.Time)})
	}
	if err = add(ifd0, tags...); err != nil {
		return nil, err
	}

	if err = buildExif(ifd0, info); err != nil {
		return nil, err
	}

	if info.GPS != nil {
		if err = buildGPS(ifd0, info.GPS); err != nil {
			return nil, err
		}
	}

	if len(info.Thumbnail) > 0 {
		ifd1 := goexif.NewIfdBuilder(im, ti, exifcommon.Ifd1StandardIfdIdentity, order)
		if err = add(ifd1, tag{"Compression", []uint16{6}}); err != nil { // JPEG
			return nil, err
		}
		if err = ifd1.SetThumbnail(info.Thumbnail); err != nil {
			return nil, err
		}
		if err = ifd0.SetNextIb(ifd1); err != nil {
			return nil, err
		}
	}

	tiff, err := goexif.NewIfdByteEncoder().EncodeToExif(ifd0)
	if err != nil {
		return nil, fmt.Errorf("exif: encode: %w", err)
	}

	b := append([]byte(header), tiff...)
	if len(b) > MaxAPP1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(b))
	}

	return b, nil
}

func buildExif(ifd0 *goexif.IfdBuilder, info *Info) error {
	ii := exifcommon.IfdExifStandardIfdIdentity
	ib, err := goexif.GetOrCreateIbFromRootIb(ifd0, ii.UnindexedString())
	if err != nil {
		return err
	}

	if err = addUndefined(ib, ii, tagExifVersion, []byte("0230")); err != nil {
		return err
	}

	var tags []tag
	if !info.Time.IsZero() {
		s := timestamp(info.Time)
		tags = append(tags, tag{"DateTimeOriginal", s}, tag{"DateTimeDigitized", s})
	}
	if info.FocalLength > 0 {
		focal := uint32(math.Round(info.FocalLength * focalPrecision))
		tags = append(tags, tag{"FocalLength", []exifcommon.Rational{rational(focal, focalPrecision)}})
	}
	tags = append(tags,
		tag{"PixelXDimension", []uint32{uint32(info.Width)}},
		tag{"PixelYDimension", []uint32{uint32(info.Height)}},
	)
	return add(ib, tags...)
}

func buildGPS(ifd0 *goexif.IfdBuilder, g *GPS) error {
	ii := exifcommon.IfdGpsInfoStandardIfdIdentity
	ib, err := goexif.GetOrCreateIbFromRootIb(ifd0, ii.UnindexedString())
	if err != nil {
		return err
	}

	latRef, lat := "N", g.Latitude
	if lat < 0 {
		latRef, lat = "S", -lat
	}
	lonRef, lon := "E", g.Longitude
	if lon < 0 {
		lonRef, lon = "W", -lon
	}
	altRef, alt := byte(0), g.Altitude
	if alt < 0 {
		altRef, alt = 1, -alt
	}

	tags := []tag{
		{"GPSVersionID", []byte{2, 2, 0, 0}},
		{"GPSLatitudeRef", latRef},
		{"GPSLatitude", degrees(lat)},
		{"GPSLongitudeRef", lonRef},
		{"GPSLongitude", degrees(lon)},
		{"GPSAltitudeRef", []byte{altRef}},
		{"GPSAltitude", []exifcommon.Rational{rational(uint32(alt*1000), 1000)}},
	}

	var t time.Time
	if !g.Timestamp.IsZero() {
		t = g.Timestamp.UTC()
		tags = append(tags, tag{"GPSTimeStamp", []exifcommon.Rational{
			rational(uint32(t.Hour()), 1),
			rational(uint32(t.Minute()), 1),
			rational(uint32(t.Second()), 1),
		}})
	}
	if err = add(ib, tags...); err != nil {
		return err
	}

	if g.ProcessingMethod != "" {
		method := append(append([]byte{}, asciiPrefix...), g.ProcessingMethod...)
		if err = addUndefined(ib, ii, tagGPSProcessingMethod, method); err != nil {
			return err
		}
	}

	if !t.IsZero() {
		return add(ib, tag{"GPSDateStamp", t.Format("2006:01:02")})
	}
	return nil
}

// degrees splits coordinate to degrees, minutes and seconds
// with microsecond precision
func degrees(v float64) []exifcommon.Rational {
	deg := uint32(v)
	m := uint32(60 * (v - float64(deg)))
	usec := uint32(3600000000 * (v - float64(deg) - float64(m)/60))
	return []exifcommon.Rational{rational(deg, 1), rational(m, 1), rational(usec, 1000000)}
}
