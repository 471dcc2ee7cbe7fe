package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposaldesk/internal/config"
	"github.com/ignatzorin/proposaldesk/internal/http/handlers"
	"github.com/ignatzorin/proposaldesk/internal/http/middleware"
)

// SetupRouter собирает gin.Engine. filesHandler нужен только для локального
// хранилища, для S3 ссылки ведут прямо в бакет.
func SetupRouter(
	cfg *config.Config,
	proposalHandler *handlers.ProposalHandler,
	templateHandler *handlers.TemplateHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	filesHandler *handlers.FilesHandler,
	tokens middleware.AccessVerifier,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	if filesHandler != nil {
		r.GET("/files/:bucket/*path", filesHandler.Serve)
	}

	api := r.Group("/api")
	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))

	// Мутации файлов тяжёлые: общий лимит частоты и размера тела.
	mutating := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	upload := middleware.BodyLimit(cfg.MaxUploadBytes())

	proposals := protected.Group("/proposals")
	{
		proposals.POST("", mutating, upload, proposalHandler.CreateProposal)
		proposals.GET("/:id", middleware.UUIDValidator("id"), proposalHandler.GetProposal)
		proposals.GET("/:id/file-url", middleware.UUIDValidator("id"), proposalHandler.FileURL)
		proposals.PUT("/:id/page-names", middleware.UUIDValidator("id"), proposalHandler.UpdatePageNames)
		proposals.POST("/:id/reconcile", middleware.UUIDValidator("id"), mutating, proposalHandler.Reconcile)

		proposals.POST("/delete-page", mutating, proposalHandler.DeletePage)
		proposals.POST("/insert-page", mutating, upload, proposalHandler.InsertPage)
		proposals.POST("/replace-page", mutating, upload, proposalHandler.ReplacePage)
		proposals.POST("/reorder-pages", mutating, proposalHandler.ReorderPages)
	}

	templates := protected.Group("/templates")
	{
		templates.GET("/:id", middleware.UUIDValidator("id"), templateHandler.GetTemplate)
		templates.POST("/:id/reconcile", middleware.UUIDValidator("id"), mutating, templateHandler.Reconcile)
		templates.POST("/split", mutating, templateHandler.Split)
		templates.POST("/merge", mutating, templateHandler.Merge)
		templates.POST("/pages", mutating, upload, templateHandler.AddPage)
		templates.DELETE("/pages", mutating, templateHandler.DeletePage)
		templates.POST("/reorder-pages", mutating, templateHandler.ReorderPages)
	}

	return r
}
