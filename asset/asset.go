// Package asset holds model files compiled into the binary.
package asset

import (
	"embed"
	"fmt"
)

//go:embed models/*
var models embed.FS

// FaceFinder is the frontal face cascade shipped with pigo
const FaceFinder = "facefinder"

// GetModel returns an embedded model by name
func GetModel(name string) ([]byte, error) {
	data, err := models.ReadFile("models/" + name)
	if err != nil {
		return nil, fmt.Errorf("embedded model %q: %w", name, err)
	}
	return data, nil
}
