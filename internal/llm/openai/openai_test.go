package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "")
	assert.Error(t, err)
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("test-key", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o", p.model)
}
