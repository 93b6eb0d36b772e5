package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderIDUniqueWithinMillisecond(t *testing.T) {
	now := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	a := GenerateOrderID(now)
	b := GenerateOrderID(now)
	assert.Regexp(t, `^ORD-\d+$`, a)
	assert.NotEqual(t, a, b)
}

func TestGenerateSessionID(t *testing.T) {
	now := time.UnixMilli(1709287200000)
	id := GenerateSessionID(now)
	assert.Regexp(t, regexp.MustCompile(`^SESSION-1709287200000-[0-9a-f]{9}$`), id)
	assert.NotEqual(t, id, GenerateSessionID(now))
}

func TestGenerateTestReference(t *testing.T) {
	assert.Equal(t, "PAY87200000", GenerateTestReference("PAY", time.UnixMilli(1709287200000)))
	assert.Equal(t, "PAY00000042", GenerateTestReference("PAY", time.UnixMilli(42)))
}
