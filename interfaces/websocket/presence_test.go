package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignColorIsUniqueWithinRoom(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 3*len(palette); i++ {
		c := assignColor(fmt.Sprintf("session-%d", i), taken)
		assert.False(t, taken[c], "color %s handed out twice", c)
		taken[c] = true
	}
	assert.Len(t, taken, 3*len(palette))
}

func TestAssignColorIsStableForSameRoomState(t *testing.T) {
	taken := map[string]bool{palette[0]: true}
	assert.Equal(t, assignColor("abc", taken), assignColor("abc", taken))
}

func TestAssignColorPrefersPalette(t *testing.T) {
	c := assignColor("abc", map[string]bool{})
	assert.Contains(t, palette, c)
}
