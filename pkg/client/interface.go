package client

import (
	"context"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// VisionClient is a vision-language model server that can look at an image.
// Transport and server failures are returned as errors; a model answer that cannot be
// understood is an empty FaceAnalysis.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error)
}
