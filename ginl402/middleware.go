// Package ginl402 adapts the payment middleware to the gin web framework.
package ginl402

import (
	"github.com/gin-gonic/gin"
	"github.com/tollgate-ln/tollgate"
	"github.com/tollgate-ln/tollgate/l402"
)

// ContextKey is the gin context key the classification record is stored
// under.
const ContextKey = "l402_info"

// Middleware wraps the payment middleware as a gin handler. Challenged
// requests are answered directly and aborted; everything else continues
// down the chain with the classification record available both on the gin
// context and the request context.
func Middleware(m *tollgate.Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, proceed := m.Process(c.Writer, c.Request)
		if !proceed {
			c.Abort()
			return
		}

		c.Set(ContextKey, info)
		c.Request = c.Request.WithContext(
			l402.AddToContext(c.Request.Context(), info),
		)
		c.Next()
	}
}

// InfoFromContext returns the classification record stored by the
// middleware, or nil if the request never passed through it.
func InfoFromContext(c *gin.Context) *l402.Info {
	value, ok := c.Get(ContextKey)
	if !ok {
		return nil
	}

	info, ok := value.(*l402.Info)
	if !ok {
		return nil
	}

	return info
}
