package mw

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const actorKey = "acting_user"

// Anonymous is the actor recorded when a request names none.
const Anonymous = "anonymous"

// ActingUser reads the opaque acting-user identity from header and stores it
// on the context. Authentication happens in front of the service.
func ActingUser(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(header))
		if actor != "" {
			c.Set(actorKey, actor)
		}
		c.Next()
	}
}

// Actor returns the acting user of the request, or Anonymous.
func Actor(c *gin.Context) string {
	if v := c.GetString(actorKey); v != "" {
		return v
	}
	return Anonymous
}
