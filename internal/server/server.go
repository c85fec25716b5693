package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"qawafel-crm/internal/ai"
	"qawafel-crm/internal/events"
	"qawafel-crm/internal/handler"
	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/otp"
	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/jwtutil"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/pkg/metrics"
)

// Options are the dependencies of the HTTP server
type Options struct {
	Config    *config.Config
	Publisher events.Publisher
	Messages  *ai.MessageService
}

// New builds the echo instance with middleware and every route
func New(opts Options) *echo.Echo {
	cfg := opts.Config
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	jwtUtil := jwtutil.NewJWTUtil(&cfg.JWT)
	sessions := middleware.NewSessions(jwtUtil, cfg.Server.IsProduction())

	authHandler := handler.NewAuthHandler(sessions)
	googleAuth := handler.NewGoogleAuth(cfg.Google, sessions)
	otpHandler := handler.NewOTPHandler(otp.NewClient(&cfg.OTP, cfg.Server.AppURL), sessions)
	httpMetrics := metrics.NewHTTPMetrics(cfg.Metrics.Prefix)

	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowedOrigins),
	}))
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())
	e.Use(events.Middleware(publisher))

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/signup-requests", authHandler.CreateSignupRequest)
	auth.GET("/google/login", googleAuth.Login)
	auth.GET("/google/callback", googleAuth.Callback)

	// Phone verification and provider callbacks
	otpRoutes := e.Group("/api/auth")
	otpRoutes.POST("/send-otp", otpHandler.SendOTP)
	otpRoutes.POST("/verify-otp", otpHandler.VerifyOTP)
	otpRoutes.GET("/callback", otpHandler.OTPCallback)
	otpRoutes.POST("/callback", otpHandler.OTPCallback)

	// Lead self-service form
	public := e.Group("/public")
	public.GET("/leads/form/:token", handler.GetLeadForm)
	public.PUT("/leads/form/:token", handler.SubmitLeadForm)

	// API routes - all require a signed-in user
	api := e.Group("/api")
	api.Use(middleware.RequireAuth(jwtUtil))

	api.GET("/session", authHandler.Session)
	api.GET("/bootstrap", handler.GetBootstrap)
	api.GET("/dashboard", handler.GetDashboard)
	api.GET("/lookups", handler.GetLookups)

	customers := api.Group("/customers")
	customers.GET("", handler.ListCustomers)
	customers.POST("", handler.CreateCustomer)
	customers.GET("/:id", handler.GetCustomer)
	customers.PUT("/:id", handler.UpdateCustomer)
	customers.DELETE("/:id", handler.DeleteCustomer)

	merchants := api.Group("/merchants")
	merchants.GET("", handler.ListMerchants)
	merchants.POST("", handler.CreateMerchant)
	merchants.GET("/:id", handler.GetMerchant)
	merchants.PUT("/:id", handler.UpdateMerchant)
	merchants.DELETE("/:id", handler.DeleteMerchant)
	merchants.GET("/:id/users", handler.ListMerchantUsers)
	merchants.POST("/:id/users", handler.AddMerchantUser)
	api.DELETE("/merchant-user-mappings/:id", handler.DeleteMerchantUserMapping)
	api.DELETE("/merchant-users/:id", handler.DeleteMerchantUser)

	leads := api.Group("/leads")
	leads.GET("", handler.ListLeads)
	leads.POST("", handler.CreateLead)
	leads.GET("/:id", handler.GetLead)
	leads.PUT("/:id", handler.UpdateLead)
	leads.DELETE("/:id", handler.DeleteLead)
	leads.POST("/:id/form-token", handler.RegenerateLeadFormToken)

	deals := api.Group("/deals")
	deals.GET("", handler.ListDeals)
	deals.POST("", handler.CreateDeal)
	deals.GET("/pipeline", handler.DealPipeline)
	deals.GET("/:id", handler.GetDeal)
	deals.PUT("/:id", handler.UpdateDeal)
	deals.DELETE("/:id", handler.DeleteDeal)

	proposals := api.Group("/proposals")
	proposals.GET("", handler.ListProposals)
	proposals.POST("", handler.CreateProposal)
	proposals.GET("/:id", handler.GetProposal)
	proposals.PUT("/:id", handler.UpdateProposal)
	proposals.DELETE("/:id", handler.DeleteProposal)

	api.GET("/notes", handler.ListNotes)
	api.POST("/notes", handler.CreateNote)
	api.DELETE("/notes/:id", handler.DeleteNote)

	api.GET("/activities", handler.ListActivities)
	api.POST("/activities", handler.CreateActivity)

	api.PUT("/profile", handler.UpdateProfile)
	api.PUT("/profile/password", handler.ChangePassword)

	api.POST("/import/:entity", handler.ImportRecords)
	api.GET("/export/:entity", handler.ExportRecords)

	api.POST("/generate-message", handler.GenerateMessage(opts.Messages))

	// Approvals and roles - admins only
	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.GET("/signup-requests", handler.ListSignupRequests)
	admin.POST("/signup-requests/:id/approve", handler.ApproveSignupRequest)
	admin.POST("/signup-requests/:id/reject", handler.RejectSignupRequest)
	admin.GET("/users", handler.ListUsers)
	admin.PUT("/users/:id/approval", handler.UpdateUserApproval)
	admin.PUT("/users/:id/role", handler.UpdateUserRole)

	e.HTTPErrorHandler = errorHandler(e)
	return e
}

// allowsAnyOrigin reports whether CORS is open to every origin, in which
// case credentials cannot be allowed
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// errorHandler answers echo errors such as unknown routes with the
// {"error": ...} body every handler uses
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			e.Logger.Error(err)
		}
	}
}
