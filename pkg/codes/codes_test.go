package codes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate(DefaultLength)
		assert.Len(t, code, DefaultLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q in %s", c, code)
		}
		assert.True(t, Valid(code))
	}
}

func TestGenerate_NonPositiveLengthDefaults(t *testing.T) {
	assert.Len(t, Generate(0), DefaultLength)
	assert.Len(t, Generate(-3), DefaultLength)
}

func TestValid(t *testing.T) {
	testCases := []struct {
		code  string
		valid bool
	}{
		{"ABCD", true},
		{"ABCDEF", true},
		{"AB12CD34EF56", true},
		{"ABC", false},
		{"ABCDEFGHJKM23", false},
		{"abcdef", false},
		{"ABC DEF", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.valid, Valid(tc.code))
		})
	}
}
