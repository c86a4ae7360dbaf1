package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// defaultRateLimit keeps a single terminal responsive while capping
// runaway clients. Formatted per limiter's "<count>-<period>" syntax.
const defaultRateLimit = "60-M"

// RateLimit throttles requests per client IP using an in-memory store.
// formatted is a limiter rate string such as "60-M"; empty falls back to
// the default.
func RateLimit(formatted string) gin.HandlerFunc {
	if formatted == "" {
		formatted = defaultRateLimit
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		log.Fatalf("Invalid rate limit %q: %v", formatted, err)
	}

	instance := limiter.New(memory.NewStore(), rate)
	limiterMiddleware := stdlib.NewMiddleware(instance)

	return func(c *gin.Context) {
		limiterMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if c.Writer.Status() == http.StatusTooManyRequests {
			c.Abort()
			return
		}
	}
}
