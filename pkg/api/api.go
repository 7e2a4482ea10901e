// Package api serves the driver portal: server-rendered pages and a JSON API
// over the same services.
package api

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/service"
)

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	ServiceName  string
	JWTSecret    string
	SessionTTL   time.Duration
	LockMonths   int
	SecureCookie bool
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ServiceName: cfg.ServiceName,
		JWTSecret:   cfg.JWTSecret,
		SessionTTL:  time.Duration(cfg.SessionTTLHours) * time.Hour,
		LockMonths:  cfg.PlanLockMonths,
	}
}

type Server struct {
	services service.IServiceManager
	opts     Options
	log      logger.ILogger
	now      func() time.Time
	engine   *gin.Engine
}

func New(services service.IServiceManager, opts Options, log logger.ILogger) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "telematics"
	}
	s := &Server{services: services, opts: opts, log: log, now: time.Now}
	s.engine = s.routes()
	return s
}

// Handler is the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, s.opts.ServiceName)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger(), observe())

	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })
	r.GET("/login", s.loginPage)
	r.POST("/login", s.loginSubmit)
	r.GET("/register", s.registerPage)
	r.POST("/register", s.registerSubmit)
	r.POST("/logout", s.logout)

	pages := r.Group("/", s.requirePage)
	{
		pages.GET("/dashboard", s.dashboardPage)
		pages.GET("/recommendations", s.recommendationsPage)
		pages.POST("/recommendations/select", s.selectPlanSubmit)
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/register", s.apiRegister)
		v1.POST("/auth/login", s.apiLogin)
		v1.GET("/premiums/summary", s.apiPremiumSummary)

		me := v1.Group("/drivers/me", s.requireAPI)
		me.GET("", s.apiMe)
		me.GET("/recommendation", s.apiRecommendation)
		me.GET("/premium", s.apiPremium)
		me.POST("/plan", s.apiSelectPlan)
	}
	return r
}
