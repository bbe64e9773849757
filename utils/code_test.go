package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCodeFormat(t *testing.T) {
	assert := assert.New(t)

	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		assert.Nil(err)
		assert.Len(code, CodeLength)
		assert.True(IsValidCodeFormat(code), "generated code %q should match the code format", code)
	}
}

func TestHashCodeDeterministic(t *testing.T) {
	assert := assert.New(t)

	digest := HashCode("123456", "salt-a")
	assert.Equal(digest, HashCode("123456", "salt-a"))
	assert.Len(digest, 64)

	// same code under a different salt must not collide
	assert.NotEqual(digest, HashCode("123456", "salt-b"))
	assert.NotEqual(digest, HashCode("654321", "salt-a"))
}

func TestVerifyCode(t *testing.T) {
	assert := assert.New(t)

	salt, err := GenerateSalt()
	assert.Nil(err)
	digest := HashCode("042999", salt)

	assert.True(VerifyCode("042999", digest, salt))
	assert.False(VerifyCode("042998", digest, salt))
	assert.False(VerifyCode("042999", digest, "other-salt"))
	assert.False(VerifyCode("", digest, salt))
}

func TestGenerateSalt(t *testing.T) {
	assert := assert.New(t)

	a, err := GenerateSalt()
	assert.Nil(err)
	b, err := GenerateSalt()
	assert.Nil(err)
	assert.Len(a, 32)
	assert.NotEqual(a, b)
}

func TestNormalizeCode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("123456", NormalizeCode("  123456 "))
	assert.True(IsValidCodeFormat(NormalizeCode(" 000000")))
	assert.False(IsValidCodeFormat("12345"))
	assert.False(IsValidCodeFormat("1234567"))
	assert.False(IsValidCodeFormat("12345a"))
	assert.False(IsValidCodeFormat("1234-56"))
}
