package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/washline/carwash-app/controllers"
	"github.com/washline/carwash-app/middlewares"
	"github.com/washline/carwash-app/services"
)

func SetupRouter(db *gorm.DB, monitor *services.PaymentMonitor) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	userCtrl := controllers.NewUserController(db)
	jobCtrl := controllers.NewJobController(db)
	companyCtrl := controllers.NewCompanyController(db)
	cleanerCtrl := controllers.NewCleanerController(db)
	paymentCtrl := controllers.NewPaymentController(db, monitor)
	adminCtrl := controllers.NewAdminController(db)
	notificationCtrl := controllers.NewNotificationController(db)
	pushCtrl := controllers.NewPushController(db)
	receiptCtrl := controllers.NewReceiptController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
		public.POST("/invitations/accept", companyCtrl.AcceptInvitation)
	}

	// Booking page needs these before login/payment.
	r.GET("/api/companies/nearby", companyCtrl.NearbyCompanies)
	r.GET("/api/stripe-config", paymentCtrl.GetStripeConfig)

	// Stripe calls this; authentication is the webhook signature.
	r.POST("/payments/webhook", paymentCtrl.StripeWebhook)

	// Websocket auth uses ?token because browsers cannot set headers here.
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("/:role", controllers.HandleWebSocket)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	api.GET("/profile", userCtrl.GetProfile)
	api.POST("/logout", userCtrl.Logout)

	// Jobs, shared across roles (handlers check ownership).
	api.GET("/jobs", jobCtrl.ListMyJobs)
	api.GET("/jobs/:job_id", jobCtrl.GetJobByID)
	api.GET("/jobs/:job_id/receipt", receiptCtrl.GetJobReceipt)

	// Notifications and push subscriptions, any role.
	api.GET("/notifications", notificationCtrl.ListMyNotifications)
	api.PATCH("/notifications/:notification_id/read", notificationCtrl.MarkRead)
	api.PATCH("/notifications/read-all", notificationCtrl.MarkAllRead)
	api.DELETE("/notifications/:notification_id", notificationCtrl.DeleteNotification)
	api.GET("/push/vapid-key", pushCtrl.VAPIDPublicKey)
	api.POST("/push/subscribe", pushCtrl.Subscribe)
	api.POST("/push/unsubscribe", pushCtrl.Unsubscribe)

	// CUSTOMER
	customer := api.Group("/")
	customer.Use(middlewares.RequireRoles("customer"))
	{
		customer.POST("/jobs", jobCtrl.CreateJob)
		customer.POST("/jobs/:job_id/cancel", jobCtrl.CancelJob)
		customer.POST("/jobs/:job_id/rate", jobCtrl.RateJob)
	}

	// Payment endpoints carry the stricter payment middlewares.
	payments := api.Group("/")
	payments.Use(middlewares.PaymentSecurityHeaders())
	payments.Use(middlewares.PaymentRateLimiter())
	payments.Use(middlewares.LogPaymentRequest())
	{
		payments.POST("/create-payment-intent",
			middlewares.RequireRoles("customer"), paymentCtrl.CreatePaymentIntent)
		payments.GET("/jobs/:job_id/payment-status", paymentCtrl.CheckJobPaymentStatus)
	}

	// COMPANY
	company := api.Group("/company")
	company.Use(middlewares.RequireRoles("company"))
	{
		company.GET("/me", companyCtrl.GetMyCompany)
		company.PATCH("/me", companyCtrl.UpdateCompany)
		company.GET("/dashboard", companyCtrl.Dashboard)
		company.GET("/staff", companyCtrl.GetStaff)
		company.POST("/staff/invite", companyCtrl.InviteCleaner)
		company.POST("/jobs/:job_id/assign", jobCtrl.AssignJob)
		company.POST("/jobs/:job_id/pay-offline", jobCtrl.PayOffline)
		company.POST("/withdrawals", companyCtrl.RequestWithdrawal)
		company.GET("/withdrawals", companyCtrl.ListWithdrawals)
	}

	// CLEANER
	cleaner := api.Group("/cleaner")
	cleaner.Use(middlewares.RequireRoles("cleaner"))
	{
		cleaner.GET("/dashboard", cleanerCtrl.Dashboard)
		cleaner.POST("/shifts/start", cleanerCtrl.StartShift)
		cleaner.POST("/shifts/end", cleanerCtrl.EndShift)
		cleaner.GET("/shifts", cleanerCtrl.ListShifts)
		cleaner.POST("/location", cleanerCtrl.LocationPing)
		cleaner.POST("/jobs/:job_id/start", cleanerCtrl.StartJob)
		cleaner.POST("/jobs/:job_id/complete", cleanerCtrl.CompleteJob)
	}

	// ADMIN
	admin := api.Group("/admin")
	admin.Use(middlewares.RequireRoles("admin"))
	{
		admin.GET("/analytics", adminCtrl.GetAnalytics)
		admin.GET("/analytics/export", adminCtrl.ExportRevenuePDF)
		admin.GET("/users", userCtrl.GetAllUsers)
		admin.GET("/jobs", adminCtrl.ListJobs)
		admin.GET("/companies", adminCtrl.ListCompanies)
		admin.GET("/fee-settings", adminCtrl.ListFeeSettings)
		admin.PUT("/fee-settings", adminCtrl.UpsertFeeSetting)
		admin.GET("/withdrawals", adminCtrl.ListWithdrawals)
		admin.POST("/withdrawals/:withdrawal_id/process", adminCtrl.ProcessWithdrawal)
		admin.POST("/jobs/:job_id/refund", adminCtrl.RefundJob)
		admin.GET("/payments/metrics", paymentCtrl.GetMetrics)
	}

	return r
}
