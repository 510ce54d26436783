package chatdao

import (
	"strings"
	"testing"

	"github.com/tj/assert"
)

func TestTitle(t *testing.T) {
	t.Run("short content is kept", func(t *testing.T) {
		assert.Equal(t, "hello", Title("hello"))
	})

	t.Run("exactly fifty characters", func(t *testing.T) {
		s := strings.Repeat("a", 50)
		assert.Equal(t, s, Title(s))
	})

	t.Run("long content is truncated", func(t *testing.T) {
		s := strings.Repeat("b", 60)
		assert.Equal(t, strings.Repeat("b", 50)+"...", Title(s))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		s := strings.Repeat("é", 51)
		assert.Equal(t, strings.Repeat("é", 50)+"...", Title(s))
	})
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("u1", "c1", "m1", RoleUser, "hi", "2024-01-01T00:00:00.000Z")
	assert.Equal(t, "u1#c1", msg.ConversationKey)
	assert.Equal(t, "2024-01-01T00:00:00.000Z#m1", msg.SortKey)
}
