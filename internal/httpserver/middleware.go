package httpserver

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	sessionCookie    = "sid"
	fbpCookie        = "_fbp"
	fbcCookie        = "_fbc"
	adminKeyHeader   = "X-Admin-Key"
	webhookHeader    = "X-Webhook-Secret"
	sessionCtxKey    = "session"
	sessionCookieAge = 60 * 60 * 24 * 30
	fbcCookieAge     = 60 * 60 * 24 * 90
)

// sessionMiddleware resolves the visitor session from the sid cookie, minting
// a new one when the cookie is missing or malformed.
func sessionMiddleware(sessions sessionProvider, publicBaseURL string, secure bool, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sid, _ := c.Cookie(sessionCookie)
		sess, err := sessions.Get(ctx, sid)
		if errors.Is(err, session.ErrInvalidID) {
			sid = sessions.NewID()
			sess, err = sessions.Get(ctx, sid)
		}
		if err != nil {
			logger.Printf("httpserver: session lookup failed error=%v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, sessionCookieAge, "/", "", secure, true)

		fbp, _ := c.Cookie(fbpCookie)
		fbc, _ := c.Cookie(fbcCookie)
		clicks, changed := sess.CaptureClickIDs(fbp, fbc, c.Query("fbclid"), time.Now())
		if changed && sess.Consent.HasConsent(domain.ConsentMarketing) {
			c.SetCookie(fbcCookie, clicks.FBC, fbcCookieAge, "/", "", secure, false)
		}

		info := conversion.RequestInfo{
			SourceURL: sourceURL(c, publicBaseURL),
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			FBC:       clicks.FBC,
			FBP:       clicks.FBP,
		}
		c.Request = c.Request.WithContext(conversion.WithRequestInfo(ctx, info))
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func sourceURL(c *gin.Context, publicBaseURL string) string {
	if ref := c.Request.Referer(); ref != "" {
		return ref
	}
	return strings.TrimRight(publicBaseURL, "/") + c.Request.URL.Path
}

func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

func adminKeyMiddleware(key string) gin.HandlerFunc {
	return headerSecretMiddleware(adminKeyHeader, key)
}

func webhookSecretMiddleware(secret string) gin.HandlerFunc {
	return headerSecretMiddleware(webhookHeader, secret)
}

// An empty configured secret disables the route.
func headerSecretMiddleware(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "endpoint disabled"})
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
