package app

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-gradebook-api/internal/handler"
	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	"github.com/noah-isme/sma-gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-gradebook-api/pkg/middleware/requestid"
)

// Router builds the HTTP engine with every gradebook route mounted under the
// configured API prefix.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics, middleware.DefaultMetricsSkipPaths...))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.Pinger{}
	if a.DB != nil {
		checks["database"] = a.DB
	}
	if a.CacheRepo != nil {
		checks["cache"] = handler.PingFunc(a.CacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(a.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(a.Config.APIPrefix, "/")
	api := r.Group(prefix)
	api.GET("/metrics/summary", metricsHandler.Summary)

	classes := handler.NewClassHandler(a.Classes)
	students := handler.NewStudentHandler(a.Students)
	api.GET("/classes", classes.List)
	api.POST("/classes", classes.Create)
	api.GET("/classes/:id", classes.Get)
	api.PUT("/classes/:id", classes.Update)
	api.GET("/classes/:id/students", students.Roster)
	api.POST("/students", students.Create)
	api.PUT("/students/:id", students.Update)
	api.DELETE("/students/:id", students.Deactivate)

	subjects := handler.NewSubjectHandler(a.Subjects)
	api.GET("/subjects", subjects.List)
	api.POST("/subjects", subjects.Create)
	api.GET("/subjects/:id", subjects.Get)
	api.PUT("/subjects/:id", subjects.Update)
	api.DELETE("/subjects/:id", subjects.Delete)

	grades := handler.NewGradeHandler(a.Grades)
	api.GET("/grades", grades.List)
	api.POST("/grades", grades.Upsert)
	api.PUT("/grades/bulk", grades.Bulk)
	api.GET("/grades/sheet", grades.Sheet)
	api.POST("/grades/recalculate", grades.Recalculate)

	recaps := handler.NewRecapHandler(a.Recaps)
	api.GET("/recap", recaps.Get)
	api.GET("/recap/:classId", recaps.Get)
	api.GET("/recap/:classId/export", recaps.Export)

	dashboard := handler.NewDashboardHandler(a.Dashboard)
	api.GET("/dashboard", dashboard.Summary)

	return r
}
