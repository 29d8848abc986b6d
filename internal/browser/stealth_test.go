package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomProfileWithinBounds(t *testing.T) {
	agents := UserAgents()

	for i := 0; i < 200; i++ {
		p := RandomProfile()

		assert.Contains(t, agents, p.UserAgent)
		assert.GreaterOrEqual(t, p.Viewport.Width, MinViewportWidth)
		assert.LessOrEqual(t, p.Viewport.Width, MaxViewportWidth)
		assert.GreaterOrEqual(t, p.Viewport.Height, MinViewportHeight)
		assert.LessOrEqual(t, p.Viewport.Height, MaxViewportHeight)
		assert.Equal(t, "en-US,en;q=0.9", p.Headers["Accept-Language"])
	}
}

func TestUserAgentsReturnsCopy(t *testing.T) {
	agents := UserAgents()
	agents[0] = "changed"

	assert.NotEqual(t, "changed", UserAgents()[0])
}
