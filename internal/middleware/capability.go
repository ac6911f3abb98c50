package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"predictpro/internal/gate"
	"predictpro/internal/settings"
)

// Require aborts the request unless the authenticated caller's role passes
// the capability gate for action under the current feature flags. Must run
// after Authenticate.
func Require(action gate.Action, st *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		flags := gate.Flags{AssistantResetEnabled: st.Snapshot().AssistantResetEnabled}
		if err := gate.Allowed(user.Role, action, flags); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
