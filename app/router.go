package app

import (
	"time"

	"bitwise74/smart-librarian/app/book"
	"bitwise74/smart-librarian/app/root"
	"bitwise74/smart-librarian/app/shelf"
	"bitwise74/smart-librarian/app/tts"
	"bitwise74/smart-librarian/app/user"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/pkg/middleware"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewRouter(d *internal.Deps, store persist.CacheStore) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     d.Cfg.Host.CORS,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	rateLimit := d.Cfg.Security.RateLimit

	auth := middleware.NewAuthMiddleware(d.Auth)
	optionalAuth := middleware.NewOptionalAuthMiddleware(d.Auth)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled: d.Cfg.Security.Turnstile.Enabled,
		Secret:  d.Cfg.Security.Turnstile.SecretToken,
	})
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	})

	m := router.Group("/api", rateLimiter, middleware.BodySizeLimiter(1<<20))
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/health		-> Liveness probe with a JSON body
		m.GET("/health", root.Health)

		// POST /api/ask		-> Recommends one book for a free text query
		m.POST("/ask", optionalAuth, func(c *gin.Context) { book.BookAsk(c, d) })

		// GET /api/books/:title	-> Returns the full details of a book
		m.GET("/books/:title", cacheFor(store, 5*60), func(c *gin.Context) { book.BookFetch(c, d) })

		// POST /api/tts		-> Reads text out loud as MP3
		m.POST("/tts", func(c *gin.Context) { tts.TTSSpeak(c, d) })
	}

	a := m.Group("/auth")
	{
		// POST /api/auth/register	-> Registers a new user and mails a verification code
		a.POST("/register", turnstile, func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /api/auth/verify	-> Verifies an email with a code
		a.POST("/verify", func(c *gin.Context) { user.UserVerify(c, d) })

		// POST /api/auth/resend-verify	-> Mails a fresh verification code
		a.POST("/resend-verify", turnstile, func(c *gin.Context) { user.UserResendVerify(c, d) })

		// POST /api/auth/login		-> Logs in a user and returns tokens
		a.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })

		// POST /api/auth/refresh	-> Exchanges a refresh token for new tokens
		a.POST("/refresh", func(c *gin.Context) { user.UserRefresh(c, d) })

		// POST /api/auth/logout	-> Clears the session cookies
		a.POST("/logout", func(c *gin.Context) { user.UserLogout(c, d) })

		// POST /api/auth/forgot	-> Mails a password reset code
		a.POST("/forgot", turnstile, func(c *gin.Context) { user.UserForgotPassword(c, d) })

		// POST /api/auth/reset		-> Sets a new password with a reset code
		a.POST("/reset", func(c *gin.Context) { user.UserResetPassword(c, d) })

		// POST /api/auth/change-password/request	-> Mails a password change code
		a.POST("/change-password/request", auth, func(c *gin.Context) { user.UserChangePasswordRequest(c, d) })

		// POST /api/auth/change-password/confirm	-> Changes the password
		a.POST("/change-password/confirm", auth, func(c *gin.Context) { user.UserChangePasswordConfirm(c, d) })
	}

	me := m.Group("/me", auth)
	{
		// GET /api/me			-> Returns the profile of the signed in user
		me.GET("", func(c *gin.Context) { user.UserFetch(c, d) })

		// GET /api/me/badges		-> Returns earned badges, newest first
		me.GET("/badges", cachePerUser(store, "badges", 15), func(c *gin.Context) { user.UserBadges(c, d) })

		// POST /api/me/track/search	-> Records a search query
		me.POST("/track/search", func(c *gin.Context) { user.UserTrackSearch(c, d) })

		// GET /api/me/shelf		-> Lists shelf items, optionally by status
		me.GET("/shelf", func(c *gin.Context) { shelf.ShelfFetch(c, d) })

		// POST /api/me/shelf		-> Adds a book to the shelf
		me.POST("/shelf", func(c *gin.Context) { shelf.ShelfAdd(c, d) })

		// PATCH /api/me/shelf/:id	-> Moves a shelf item to another status
		me.PATCH("/shelf/:id", func(c *gin.Context) { shelf.ShelfEdit(c, d) })

		// DELETE /api/me/shelf/:id	-> Removes a shelf item
		me.DELETE("/shelf/:id", func(c *gin.Context) { shelf.ShelfDelete(c, d) })
	}

	return router
}
