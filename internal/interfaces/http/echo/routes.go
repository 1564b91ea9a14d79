package echo

import (
	"net/http"

	e "github.com/labstack/echo/v4"
)

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler) {
	server.GET("/healthz", func(c e.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	imports := server.Group("/api/v1/imports", RequireCaller())
	imports.GET("/modules", importHandler.ListModules)
	imports.GET("/history", importHandler.History)
	imports.GET("/:entity/template", importHandler.Template)
	imports.POST("/:entity/upload", importHandler.Upload)
	imports.POST("/:entity/batches/:batch_id/validate", importHandler.Validate)
	imports.GET("/:entity/batches/:batch_id/preview", importHandler.Preview)
	imports.POST("/:entity/batches/:batch_id/commit", importHandler.Commit)
	imports.DELETE("/:entity/batches/:batch_id", importHandler.Cancel)
}
