package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session"
	ctxDriverID   = "driver_id"
)

var errNoToken = errors.New("no session token")

func (s *Server) issueToken(driverID string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.opts.SessionTTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   driverID,
		Issuer:    s.opts.ServiceName,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (s *Server) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// sessionDriver reads the token from the Authorization header or the
// session cookie.
func (s *Server) sessionDriver(c *gin.Context) (string, error) {
	raw := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	} else if cookie, err := c.Cookie(sessionCookie); err == nil {
		raw = cookie
	}
	if raw == "" {
		return "", errNoToken
	}
	return s.parseToken(raw)
}

func (s *Server) setSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.SecureCookie, true)
}

func (s *Server) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.opts.SecureCookie, true)
}

func (s *Server) requirePage(c *gin.Context) {
	driverID, err := s.sessionDriver(c)
	if err != nil {
		if !errors.Is(err, errNoToken) {
			s.clearSession(c)
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Set(ctxDriverID, driverID)
	c.Next()
}

func (s *Server) requireAPI(c *gin.Context) {
	driverID, err := s.sessionDriver(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "unauthorized", "valid session token required")
		c.Abort()
		return
	}
	c.Set(ctxDriverID, driverID)
	c.Next()
}

func currentDriver(c *gin.Context) string {
	return c.GetString(ctxDriverID)
}
