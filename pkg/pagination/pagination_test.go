package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit}, Clamp(0, 0))
	assert.Equal(t, Params{Page: 3, Limit: 10}, Clamp(3, 10))
	assert.Equal(t, Params{Page: 1, Limit: MaxLimit}, Clamp(-2, 5000))
	assert.Equal(t, 20, Clamp(3, 10).Offset())
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=2&limit=abc", nil)

	assert.Equal(t, Params{Page: 2, Limit: DefaultLimit}, Parse(c))
}
