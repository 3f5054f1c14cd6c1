package middleware

import (
	"net/http"
	"strings"

	"oneworld-backend/cache"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie carrying the admin panel session token.
const SessionCookieName = "ow_admin_session"

// sessionKey is the gin context key the admin session is stored under.
const sessionKey = "adminSession"

// RequireAdminSession gates the server-rendered admin panel. Page requests
// without a session are redirected to the login page; API requests get a
// JSON 401.
func RequireAdminSession(sessions *cache.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookieName)
		session, ok := sessions.Get(c.Request.Context(), token)
		if !ok {
			if strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			} else {
				c.Redirect(http.StatusFound, "/admin/login")
				c.Abort()
			}
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// CurrentAdminSession returns the session stored by RequireAdminSession.
func CurrentAdminSession(c *gin.Context) (*cache.AdminSession, bool) {
	val, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := val.(*cache.AdminSession)
	return session, ok
}
