package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/app"
	iauth "github.com/charlesng35/rosterd/internal/auth"
	"github.com/charlesng35/rosterd/internal/cache"
	"github.com/charlesng35/rosterd/internal/handlers"
	"github.com/charlesng35/rosterd/internal/jobs"
	"github.com/charlesng35/rosterd/internal/middleware"
	"github.com/charlesng35/rosterd/internal/monitoring"
	"github.com/charlesng35/rosterd/internal/monitoring/checks"
	"github.com/charlesng35/rosterd/internal/services"
)

// Dependencies carries the wired services the router mounts.
type Dependencies struct {
	DB          *gorm.DB
	Config      *app.Config
	Credentials *iauth.CredentialStore
	Gate        *iauth.Gate
	Students    *services.StudentService
	Audit       *services.AuditService
	Jobs        *jobs.Runner
	Cache       cache.Store
	RateStore   middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Credentials == nil:
		return fmt.Errorf("credential store must be provided")
	case d.Gate == nil:
		return fmt.Errorf("access gate must be provided")
	case d.Students == nil:
		return fmt.Errorf("student service must be provided")
	case d.Audit == nil:
		return fmt.Errorf("audit service must be provided")
	case d.Jobs == nil:
		return fmt.Errorf("job runner must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the roster routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	health := monitoring.NewHealthManager(checks.Database(deps.DB, 0))
	if deps.Cache != nil {
		health.Register(checks.Cache(deps.Cache, 0))
	}
	r.GET("/health", handlers.Health(health))

	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Credentials)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)

		login := []gin.HandlerFunc{authHandler.Login}
		if limit, window := deps.Config.Auth.LoginLimit(); limit > 0 && deps.RateStore != nil {
			login = append([]gin.HandlerFunc{middleware.RateLimit(deps.RateStore, limit, window)}, login...)
		}
		auth.POST("/login", login...)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Gate))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	studentHandler := handlers.NewStudentHandler(deps.Students)
	students := api.Group("/students")
	{
		students.GET("", studentHandler.List)
		students.POST("", studentHandler.Create)
		students.GET("/:id", studentHandler.Get)
		students.PATCH("/:id", studentHandler.Update)
		students.PUT("/:id", studentHandler.Update)
		students.DELETE("/:id", studentHandler.Delete)
	}

	catalogHandler := handlers.NewCatalogHandler(deps.Students)
	faculties := api.Group("/faculties")
	{
		faculties.GET("", catalogHandler.Faculties)
		faculties.GET("/:name/stats", catalogHandler.FacultyStats)
		faculties.GET("/:name/students", catalogHandler.FacultyStudents)
	}
	courses := api.Group("/courses")
	{
		courses.GET("", catalogHandler.Courses)
		courses.GET("/:name/stats", catalogHandler.CourseStats)
		courses.GET("/:name/low-grades", catalogHandler.LowGrades)
	}

	jobHandler := handlers.NewJobHandler(deps.Jobs)
	jobRoutes := api.Group("/jobs")
	{
		jobRoutes.POST("/load", jobHandler.Load)
		jobRoutes.POST("/delete", jobHandler.Delete)
	}

	cacheHandler := handlers.NewCacheHandler(deps.Students)
	api.POST("/cache/clear", cacheHandler.Clear)

	auditHandler := handlers.NewAuditHandler(deps.Audit)
	api.GET("/audit", auditHandler.List)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
