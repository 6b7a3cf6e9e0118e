// Package auth resolves who is calling. Real authentication lives outside
// this service; resolvers here only read an identity the edge already
// established.
package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

const usernameKey = "auth.username"

var ErrNoIdentity = errors.New("no caller identity")

type IdentityResolver interface {
	Resolve(c *gin.Context) (string, error)
}

// Static treats every request as the same user.
type Static struct {
	Username string
}

func (s Static) Resolve(*gin.Context) (string, error) {
	if s.Username == "" {
		return "", ErrNoIdentity
	}
	return s.Username, nil
}

// Header reads the username from a request header set by a trusted proxy,
// falling back to Default when the header is absent.
type Header struct {
	Name    string
	Default string
}

func (h Header) Resolve(c *gin.Context) (string, error) {
	if v := strings.TrimSpace(c.GetHeader(h.Name)); v != "" {
		return v, nil
	}
	if h.Default != "" {
		return h.Default, nil
	}
	return "", ErrNoIdentity
}

// Middleware stores the resolved username on the gin context and rejects
// requests without one.
func Middleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, err := resolver.Resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"message": "Caller identity is missing"})
			return
		}
		c.Set(usernameKey, username)
		c.Next()
	}
}

func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}
