package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:4321",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:4321",
	"http://[::1]:3000", // IPv6 localhost
	"http://[::1]:4321", // IPv6 localhost
}

// CORSMiddleware allows the page tag to call the API from the site's origins.
// Without configured origins only local development hosts are allowed.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	origins := allowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	config := cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Requested-With", "X-Request-ID",
			"Cache-Control",
		},
		AllowCredentials: true,
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control", "X-Request-ID",
		},
	}

	return cors.New(config)
}
