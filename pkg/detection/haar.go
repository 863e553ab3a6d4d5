package detection

// HaarConfig holds the parameters of the OpenCV Haar cascade back-end
type HaarConfig struct {
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// DefaultHaarConfig returns the classic frontal-face parameters
func DefaultHaarConfig() HaarConfig {
	return HaarConfig{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      60,
	}
}
