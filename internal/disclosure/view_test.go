package disclosure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestView(t *testing.T) {
	long := strings.Repeat("x", 3000)

	t.Run("short body is never truncated", func(t *testing.T) {
		ex := View("hola", 0, false)
		assert.Equal(t, "hola", ex.Text)
		assert.False(t, ex.Truncated)
		assert.Equal(t, 4, ex.TotalChars)
	})

	t.Run("collapsed view stops at base limit", func(t *testing.T) {
		ex := View(long, 250, false)
		assert.Len(t, ex.Text, BaseLimit)
		assert.True(t, ex.Truncated)
		assert.Equal(t, 3000, ex.TotalChars)
	})

	t.Run("expanded view follows unlocked limit", func(t *testing.T) {
		ex := View(long, 100, true)
		assert.Len(t, ex.Text, 2200)
		assert.True(t, ex.Truncated)

		ex = View(long, 250, true)
		assert.Equal(t, long, ex.Text)
		assert.False(t, ex.Truncated)
	})

	t.Run("multibyte text is cut on rune boundaries", func(t *testing.T) {
		body := strings.Repeat("é", 1300)
		ex := View(body, 0, false)
		assert.Equal(t, strings.Repeat("é", 1200), ex.Text)
	})
}
