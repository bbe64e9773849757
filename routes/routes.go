package routes

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"attestation-backend/controllers"
	"attestation-backend/middleware"
	"attestation-backend/services"
)

func parseCorsOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func SetupRouter(
	ac *controllers.AttestationController,
	cc *controllers.CheckinController,
	auth *controllers.AuthController,
	pc *controllers.PolicyController,
	tokens *services.TokenService,
	db *gorm.DB,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	origins := parseCorsOrigins()
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Geolocation"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", auth.Login)
			authRoutes.GET("/me", middleware.StaffAuth(tokens, db), auth.Me)
		}

		// Public guest endpoints reached from the SMS link.
		checkin := api.Group("/checkin")
		{
			checkin.POST("/session", cc.InitSession)
			checkin.POST("/consent", cc.ConfirmConsent)
		}

		attestations := api.Group("/attestations", middleware.StaffAuth(tokens, db))
		{
			attestations.POST("", ac.Send)
			attestations.GET("", ac.List)
			attestations.GET("/:id", ac.Get)
			attestations.GET("/:id/events", ac.ListEvents)
			attestations.POST("/:id/verify", ac.VerifyCode)
		}

		policies := api.Group("/policies", middleware.StaffAuth(tokens, db))
		{
			policies.GET("", pc.List)
			policies.POST("", pc.Create)
			policies.DELETE("/:id", pc.Delete)
		}
	}

	return r
}
