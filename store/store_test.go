package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	id := NewID()
	upper := "5F1D7F3E9D1B2C3A4E5F6A7B"

	assert.True(t, ValidID(upper))
	assert.Equal(t, "5f1d7f3e9d1b2c3a4e5f6a7b", NormalizeID(upper))
	assert.Equal(t, id, NormalizeID(id))
	assert.Equal(t, "NOT-AN-ID", NormalizeID("NOT-AN-ID"))
	assert.Equal(t, "", NormalizeID(""))
}
