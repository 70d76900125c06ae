package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/dto"
	"github.com/princinho/jobportal/middleware"
	"github.com/princinho/jobportal/services"
	"github.com/princinho/jobportal/utils"
)

// LoginPath is where the admin guard sends unauthenticated visitors.
const LoginPath = "/auth/login"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Secure bool
	Domain string
	TTL    time.Duration
}

func setSessionCookie(c *gin.Context, cfg CookieConfig, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c *gin.Context, cfg CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isFormPost(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == binding.MIMEPOSTForm || ct == binding.MIMEMultipartPOSTForm
}

// POST /auth/register
func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RegisterDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		user, err := auth.Register(c.Request.Context(), body.Name, body.Email, body.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully",
			"user":    user,
		})
	}
}

// GET /auth/login is the entry point the admin guard redirects to.
func LoginEntry() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{
			"message":     "sign in required",
			"callbackUrl": utils.SafeCallbackPath(c.Query("callbackUrl"), "/"),
		}
		if e := c.Query("error"); e != "" {
			resp["error"] = e
		}
		c.JSON(http.StatusOK, resp)
	}
}

// POST /auth/login
//
// JSON clients get the session in the body and as a cookie. Form posts from
// the login page are redirected to callbackUrl on success and back to the
// login page with error=CredentialsSignin on failure.
func Login(auth *services.AuthService, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		form := isFormPost(c)

		var body dto.LoginDTO
		if err := c.ShouldBind(&body); err != nil {
			if form {
				redirectLoginFailure(c, body.CallbackURL)
				return
			}
			bindError(c, err)
			return
		}

		sess, err := auth.Login(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			if form && errors.Is(err, apperror.ErrInvalidCredentials) {
				redirectLoginFailure(c, body.CallbackURL)
				return
			}
			respondError(c, err)
			return
		}

		setSessionCookie(c, cookies, sess.Token)
		if form {
			c.Redirect(http.StatusSeeOther, utils.SafeCallbackPath(body.CallbackURL, "/"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":      sess.User,
			"expiresAt": sess.ExpiresAt,
			"token":     sess.Token,
		})
	}
}

func redirectLoginFailure(c *gin.Context, callback string) {
	q := url.Values{"error": {"CredentialsSignin"}}
	if cb := utils.SafeCallbackPath(callback, ""); cb != "" {
		q.Set("callbackUrl", cb)
	}
	c.Redirect(http.StatusSeeOther, LoginPath+"?"+q.Encode())
}

// POST /auth/logout
func Logout(cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clearSessionCookie(c, cookies)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// GET /auth/session
func GetSession(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := middleware.SessionFromRequest(c)
		if token == "" {
			respondError(c, apperror.ErrUnauthorized)
			return
		}
		claims, err := auth.Decode(token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user": gin.H{
				"id":   claims.UserID,
				"role": claims.Role,
			},
			"expiresAt": claims.ExpiresAt.Time,
		})
	}
}

// POST /auth/forgot-password
func ForgotPassword(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		if err := auth.IssueReset(c.Request.Context(), body.Email); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "If an account with that email exists, we've sent a password reset link",
		})
	}
}

// POST /auth/reset-password
func ResetPassword(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		if err := auth.RedeemReset(c.Request.Context(), body.Token, body.Password); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
	}
}
