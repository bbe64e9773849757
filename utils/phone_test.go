package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert := assert.New(t)

	normalized, err := NormalizePhone("+15551234567")
	assert.Nil(err)
	assert.Equal("+15551234567", normalized)

	// default region applies when the prefix is missing
	normalized, err = NormalizePhone("(555) 123-4567")
	assert.Nil(err)
	assert.Equal("+15551234567", normalized)

	_, err = NormalizePhone("")
	assert.NotNil(err)

	_, err = NormalizePhone("12")
	assert.NotNil(err)

	_, err = NormalizePhone("not a phone")
	assert.NotNil(err)
}
