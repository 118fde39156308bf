package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/smis-school/smis/docs"
)

// SetupSwagger serves the API docs at /swagger/index.html, stamped with the
// running build version. Authorization entered in the UI survives reloads.
func SetupSwagger(router *gin.Engine, version string) {
	if version != "" {
		docs.SwaggerInfo.Version = version
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
}
