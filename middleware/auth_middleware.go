package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/jobportal/utils"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session_token"

const claimsKey = "claims"

// SessionDecoder validates a session token without a store lookup.
type SessionDecoder interface {
	Decode(token string) (*utils.SessionClaims, error)
}

// SessionFromRequest returns the token from the session cookie, falling back
// to an Authorization: Bearer header.
func SessionFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// AdminGuard lets a request through only with a valid admin session. Every
// other case, including a valid non-admin session, is sent to loginPath with
// the requested path as callbackUrl. The query string is not carried over.
func AdminGuard(decoder SessionDecoder, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := decode(c, decoder)
		if !ok || !claims.IsAdmin() {
			q := url.Values{"callbackUrl": {c.Request.URL.Path}}
			c.Redirect(http.StatusTemporaryRedirect, loginPath+"?"+q.Encode())
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// GuardPrefix runs guard for every request under prefix, matched route or
// not. Registered with Engine.Use it also covers 404s and unknown methods.
func GuardPrefix(prefix string, guard gin.HandlerFunc) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			guard(c)
			return
		}
		c.Next()
	}
}

// RequireSession rejects requests without a valid session with a 401.
func RequireSession(decoder SessionDecoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := decode(c, decoder)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// Claims returns the session set by AdminGuard or RequireSession.
func Claims(c *gin.Context) (*utils.SessionClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.SessionClaims)
	return claims, ok
}

func decode(c *gin.Context, decoder SessionDecoder) (*utils.SessionClaims, bool) {
	token := SessionFromRequest(c)
	if token == "" {
		return nil, false
	}
	claims, err := decoder.Decode(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims *utils.SessionClaims) {
	c.Set(claimsKey, claims)
	c.Set("userID", claims.UserID)
	c.Set("role", string(claims.Role))
}
