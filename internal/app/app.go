// Package app wires configuration, storage and services into a runnable
// gradebook instance shared by the HTTP server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/repository"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	"github.com/noah-isme/sma-gradebook-api/pkg/cache"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	"github.com/noah-isme/sma-gradebook-api/pkg/database"
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
)

// App holds the long-lived dependencies of the gradebook.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	CacheRepo *repository.CacheRepository
	Metrics   *service.MetricsService
	Cache     *service.CacheService
	Classes   *service.ClassService
	Subjects  *service.SubjectService
	Students  *service.StudentService
	Grades    *service.GradeService
	Recaps    *service.RecapService
	Dashboard *service.DashboardService
	Warmer    *service.RecapWarmer
}

// New opens the database and optional Redis cache and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database schema applied", zap.String("driver", cfg.Database.Driver))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, recap cache disabled", zap.Error(err))
		redisClient = nil
	}

	a := build(cfg, logger, db, redisClient)
	if a.Warmer != nil {
		a.Warmer.Start(ctx)
	}
	return a, nil
}

func build(cfg *config.Config, logger *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *App {
	a := &App{Config: cfg, Logger: logger, DB: db, Redis: redisClient}
	validate := validator.New()
	defaultTerm := models.Term{Semester: cfg.Gradebook.DefaultSemester, AcademicYear: cfg.Gradebook.DefaultAcademicYear}

	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	a.Metrics = service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		a.CacheRepo = repository.NewCacheRepository(redisClient, "gradebook", logger)
		cacheRepo = a.CacheRepo
	}
	a.Cache = service.NewCacheService(cacheRepo, a.Metrics, cfg.Recap.CacheTTL, logger, cfg.Recap.CacheEnabled && redisClient != nil)

	a.Classes = service.NewClassService(classRepo, a.Cache, validate, logger)
	a.Subjects = service.NewSubjectService(subjectRepo, classRepo, a.Cache, validate, logger)
	a.Students = service.NewStudentService(studentRepo, classRepo, a.Cache, validate, logger)
	a.Grades = service.NewGradeService(gradeRepo, studentRepo, subjectRepo, classRepo, a.Cache, a.Metrics,
		service.GradeServiceConfig{DefaultTerm: defaultTerm, MaxBulkEntries: cfg.Gradebook.MaxBulkEntries}, validate, logger)
	a.Recaps = service.NewRecapService(classRepo, studentRepo, subjectRepo, gradeRepo, a.Cache, a.Metrics, export.NewPDFExporter(),
		service.RecapServiceConfig{DefaultTerm: defaultTerm, CacheTTL: cfg.Recap.CacheTTL, SchoolName: cfg.Reports.SchoolName}, validate, logger)
	a.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Classes:   classRepo,
		Students:  studentRepo,
		Subjects:  subjectRepo,
		Grades:    gradeRepo,
		Cache:     a.Cache,
		Validator: validate,
		Logger:    logger,
		Config:    service.DashboardServiceConfig{DefaultTerm: defaultTerm, CacheTTL: cfg.Recap.DashboardTTL},
	})

	if cfg.Recap.WarmOnWrite && a.Cache.Enabled() {
		a.Warmer = service.NewRecapWarmer(a.Recaps, service.RecapWarmerConfig{Workers: cfg.Recap.WarmWorkers, MaxRetries: 2}, logger)
		a.Grades.SetRecapWarmer(a.Warmer)
	}
	return a
}

// Close stops background work and releases the database and cache connections.
func (a *App) Close() error {
	if a.Warmer != nil {
		a.Warmer.Stop()
	}
	var errs []error
	if a.CacheRepo != nil {
		errs = append(errs, a.CacheRepo.Close())
	} else if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
