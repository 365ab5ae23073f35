package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/azimjon-95/totli-webapp/internal/adapter/telegram"
)

// NewCORS allows the given origins to read the dashboard and trigger
// refreshes. An empty list allows any origin.
func NewCORS(allowedOrigins []string) fiber.Handler {
	origins := "*"
	if len(allowedOrigins) > 0 {
		origins = strings.Join(allowedOrigins, ",")
	}

	return fibercors.New(fibercors.Config{
		AllowOrigins:  origins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID," + telegram.HeaderInitData,
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	})
}
