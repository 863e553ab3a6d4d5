package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModel(t *testing.T) {
	data, err := GetModel(FaceFinder)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = GetModel("missing")
	assert.Error(t, err)
}
