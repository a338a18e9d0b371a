// Package api exposes the services over a JSON HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"courtside/internal/attendance"
	"courtside/internal/auth"
	"courtside/internal/balance"
	"courtside/internal/httpmiddleware"
	"courtside/internal/students"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of the router.
type Deps struct {
	Logger     *zap.Logger
	Auth       *auth.Service
	Students   *students.Service
	Attendance *attendance.Service
	Balance    *balance.Calculator

	SigningKey      string
	Issuer          string
	CORSOrigins     []string
	RateLimitPerMin int
	Production      bool
	Location        *time.Location
	Health          map[string]HealthCheck
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Location == nil {
		d.Location = time.UTC
	}
	h := &Handler{deps: d, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.Logger(d.Logger, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics())
	// cors refuses a config without origins, so browsers simply get no CORS
	// headers in that case.
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           24 * time.Hour,
		}))
	} else {
		d.Logger.Warn("no CORS origins configured, cross-origin browser calls will be refused")
	}
	r.Use(httpmiddleware.SecurityHeaders(d.Production))
	r.Use(httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	{
		pub := v1.Group("/auth")
		pub.POST("/register", h.Register)
		pub.POST("/login", h.Login)
		pub.POST("/refresh", h.Refresh)
		pub.POST("/password-reset", h.RequestPasswordReset)
		pub.POST("/password-reset/confirm", h.ResetPassword)
	}

	authed := v1.Group("", auth.RequireAuth(d.SigningKey, d.Issuer))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)

	authed.GET("/dashboard", auth.RequireRoute(auth.RouteDashboard), h.Dashboard)

	att := authed.Group("", auth.RequireRoute(auth.RouteAttendance))
	att.GET("/roster", h.Roster)
	att.GET("/attendances", h.ListAttendances)
	att.POST("/attendances", h.RecordAttendance)
	att.GET("/students/:id/attendances", h.StudentAttendances)

	st := authed.Group("", auth.RequireRoute(auth.RouteStudents))
	st.GET("/students", h.ListStudents)
	st.POST("/students", h.CreateStudent)
	st.GET("/students/:id", h.GetStudent)
	st.PUT("/students/:id", h.UpdateStudent)
	st.DELETE("/students/:id", h.DeleteStudent)

	pur := authed.Group("", auth.RequireRoute(auth.RoutePurchases))
	pur.GET("/students/:id/purchases", h.StudentPurchases)
	pur.POST("/purchases", h.AddPurchase)

	adm := authed.Group("", auth.RequireRoute(auth.RouteAttendanceAdmin))
	adm.PATCH("/attendances/:id", h.EditAttendance)
	adm.DELETE("/attendances/:id", h.DeleteAttendance)
	adm.POST("/attendance-edits/:session/confirm", h.ConfirmEdit)
	adm.DELETE("/attendance-edits/:session", h.CancelEdit)
	adm.GET("/attendances/export.csv", h.ExportCSV)
	adm.GET("/attendances/print", h.PrintAttendances)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}
