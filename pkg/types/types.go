package types

import (
	"fmt"
	"image"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DetectedFace is a single face reported by a vision model, in normalized coordinates
type DetectedFace struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceAnalysis contains the faces a vision model reported for one image
type FaceAnalysis struct {
	Faces []DetectedFace `json:"faces"`
}

// FaceRegion is an axis-aligned face bounding box in pixel coordinates of one specific raster.
// Rotating the raster invalidates it.
type FaceRegion struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r FaceRegion) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r FaceRegion) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image.Rectangle
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// CropRegion is a 3:4 portrait rectangle lying fully inside the raster it was computed for
type CropRegion struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the region as an image.Rectangle
func (c CropRegion) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Empty reports whether the region has no area
func (c CropRegion) Empty() bool {
	return c.Width <= 0 || c.Height <= 0
}

// Rotation is a clockwise rotation in degrees applied to a raster before detection
type Rotation int

// Candidate rotations, in the order the fallback search tries them
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// SearchOrder returns the rotations tried by a rotation search
func SearchOrder() []Rotation {
	return []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// Reason explains why a file was rejected
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUndecodable
	ReasonLowQuality
	ReasonNoFaceFound
	ReasonEmptyCrop
)

var reasonNames = map[Reason]string{
	ReasonNone:        "none",
	ReasonUndecodable: "undecodable",
	ReasonLowQuality:  "low_quality",
	ReasonNoFaceFound: "no_face_found",
	ReasonEmptyCrop:   "empty_crop",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Retryable reports whether a rejection from the primary tier may be retried by the fallback tier
func (r Reason) Retryable() bool {
	switch r {
	case ReasonLowQuality, ReasonNoFaceFound, ReasonEmptyCrop:
		return true
	}
	return false
}

// Tier identifies which pass produced an outcome
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// Outcome is the terminal result for one input file
type Outcome struct {
	Input    string
	Output   string // thumbnail on success, placed original on rejection
	Reason   Reason
	Tier     Tier
	Rotation Rotation
	Oriented bool
	Face     FaceRegion
	Crop     CropRegion
}

// Success reports whether the file produced a thumbnail
func (o Outcome) Success() bool {
	return o.Reason == ReasonNone
}

func (o Outcome) String() string {
	if o.Success() {
		return fmt.Sprintf("%s -> %s (%s, %s)", o.Input, o.Output, o.Tier, o.Rotation)
	}
	return fmt.Sprintf("%s rejected: %s (%s)", o.Input, o.Reason, o.Tier)
}

// Bucket names a storage location in the batch lifecycle
type Bucket int

const (
	BucketInput Bucket = iota
	BucketAccepted
	BucketRejected
)

func (b Bucket) String() string {
	switch b {
	case BucketInput:
		return "input"
	case BucketAccepted:
		return "accepted"
	case BucketRejected:
		return "rejected"
	}
	return fmt.Sprintf("bucket(%d)", int(b))
}
