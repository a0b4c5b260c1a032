package intake

import (
	"referral_backend/internal/scheduler"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
	"referral_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires the intake endpoints onto the router.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, pool *pgxpool.Pool, enqueuer scheduler.Enqueuer, log *logger.Logger) {
	v := validator.New()
	repo := NewRepository(pool, log)

	formHandler := NewHandler(cfg, v, enqueuer, repo, log)
	leadAds := NewLeadAdsHandler(cfg, cfg, NewGraphClient(cfg), enqueuer, repo, log)

	api := r.Group("/api/v1")
	api.POST("/intake/forms", formHandler.SubmitForm)

	r.GET("/webhooks/leadads", leadAds.Verify)
	r.POST("/webhooks/leadads", leadAds.Receive)
}
