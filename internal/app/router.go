package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// Learner routes
		authGroup.GET("/tests", c.assessment.ListTests)
		authGroup.GET("/tests/:id", c.assessment.GetTest)
		authGroup.POST("/tests/:id/start", c.assessment.StartAttempt)
		authGroup.POST("/attempts/:id/submit", c.assessment.SubmitAttempt)
		authGroup.GET("/attempts/:id/result", c.assessment.GetResult)

		// Instructor routes
		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/tests", c.test.CreateTest)
			teacher.GET("/tests", c.test.ListTests)
			teacher.GET("/tests/:id", c.test.GetTest)
			teacher.PUT("/tests/:id", c.test.UpdateTest)
			teacher.DELETE("/tests/:id", c.test.DeleteTest)
			teacher.GET("/tests/:id/attempts", c.test.ListAttempts)
			teacher.GET("/attempts/:id", c.test.GetAttemptDetail)
		}
	}
}
