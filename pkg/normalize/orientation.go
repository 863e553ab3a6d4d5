// Package normalize prepares decoded rasters before face detection:
// EXIF orientation, the white-frame quality gate and extreme aspect correction.
package normalize

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation code of an image
type Orientation int

// Orientation codes handled by Normalize. Every other code is treated as OrientationNormal.
const (
	OrientationNormal      Orientation = 1
	OrientationRotate180   Orientation = 3
	OrientationRotate90CW  Orientation = 6
	OrientationRotate90CCW Orientation = 8
)

// ReadOrientation returns the EXIF orientation of the file at path.
// Missing or unreadable metadata yields OrientationNormal.
func ReadOrientation(path string) Orientation {
	f, err := os.Open(path)
	if err != nil {
		return OrientationNormal
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationNormal
	}
	return Orientation(v)
}

// Normalize rotates img so that it displays upright for the given orientation.
// It returns the input unchanged and false when no rotation is needed.
func Normalize(img image.Image, o Orientation) (image.Image, bool) {
	switch o {
	case OrientationRotate180:
		return imaging.Rotate180(img), true
	case OrientationRotate90CW:
		return imaging.Rotate270(img), true
	case OrientationRotate90CCW:
		return imaging.Rotate90(img), true
	default:
		return img, false
	}
}
