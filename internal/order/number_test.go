package order

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{14}-[0-9A-F]{8}$`)

func TestNumberGenerator_FormatAndUniqueness(t *testing.T) {
	g := NewNumberGenerator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n, err := g.Next()
		require.NoError(t, err)
		assert.Regexp(t, orderNumberPattern, n)
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %s", n)
		seen[n] = struct{}{}
	}
}

func TestNumberGenerator_UsesUTCClockAndRandomSource(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	g := &NumberGenerator{
		Now:  func() time.Time { return time.Date(2024, 3, 9, 7, 5, 1, 0, loc) },
		Rand: bytes.NewReader(bytes.Repeat([]byte{0xab}, 16)),
	}

	n, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240308230501-ABABABAB", n)
}

func TestNumberGenerator_RandomSourceFailure(t *testing.T) {
	g := &NumberGenerator{Now: time.Now, Rand: bytes.NewReader(nil)}
	_, err := g.Next()
	assert.Error(t, err)
}
