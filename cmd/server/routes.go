package main

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins))
	r.MaxMultipartMemory = int64(svc.cfg.App.MaxUploadMB) << 20

	authLimiter := middleware.NewRateLimiter(5, 10)
	writeLimiter := middleware.NewRateLimiter(2, 20).KeyBy(middleware.UserKey)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	api := r.Group("/api")
	{
		api.GET("/health", svc.healthHandler.CheckHealth)

		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/logout", svc.authHandler.Logout)
			auth.POST("/logout", svc.authHandler.Logout)
			auth.POST("/forgot-password", svc.authHandler.ForgotPassword)
			auth.POST("/reset-password", svc.authHandler.ResetPassword)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// EventSource cannot send headers; the token may come in the query.
		api.GET("/events/notifications", middleware.StreamAuthRequired(), svc.sseHandler.StreamNotifications)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Organizations
			orgs := protected.Group("/organizations", middleware.AuditLog())
			{
				orgs.POST("/create", svc.orgHandler.Create)
				orgs.POST("/join-code", svc.orgHandler.JoinWithCode)
				orgs.POST("/request-join", svc.orgHandler.RequestJoin)
				orgs.GET("/search", svc.orgHandler.Search)
				orgs.GET("/:id", svc.orgHandler.Get)
				orgs.POST("/:id/rotate-code", svc.orgHandler.RotateCode)
				orgs.GET("/:id/members", svc.orgHandler.ListMembers)
				orgs.GET("/:id/requests", svc.orgHandler.ListRequests)
				orgs.POST("/:id/requests/:userId/approve", svc.orgHandler.Approve)
				orgs.POST("/:id/requests/:userId/reject", svc.orgHandler.Reject)
			}

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.GET("/projects/:id/tickets", svc.projectHandler.ListTickets)
			projectWrite := protected.Group("/projects", middleware.AuditLog())
			{
				projectWrite.POST("", svc.projectHandler.Create)
				projectWrite.PUT("/:id", svc.projectHandler.Update)
				projectWrite.DELETE("/:id", svc.projectHandler.Delete)
			}

			// Tickets
			tickets := protected.Group("/tickets")
			{
				tickets.POST("", svc.ticketHandler.Create)
				tickets.GET("/search", svc.ticketHandler.Search)
				tickets.GET("/user/:userId", svc.ticketHandler.ListForUser)
				tickets.GET("/:id", svc.ticketHandler.Get)
				tickets.PUT("/:id", svc.ticketHandler.Update)
				tickets.DELETE("/:id", svc.ticketHandler.Delete)
				tickets.POST("/:id/assign", svc.ticketHandler.Assign)
				tickets.GET("/:id/assignees", svc.ticketHandler.ListAssignees)
				tickets.DELETE("/:id/assignees/:userId", svc.ticketHandler.Unassign)
				tickets.GET("/:id/history", svc.ticketHandler.History)
				tickets.GET("/:id/comments", svc.commentHandler.List)
				tickets.POST("/:id/comments", writeLimiter.Middleware(), svc.commentHandler.Create)
				tickets.GET("/:id/attachments", svc.attachmentHandler.List)
				tickets.POST("/:id/attachments", writeLimiter.Middleware(), svc.attachmentHandler.Upload)
			}
			protected.GET("/attachments/:id", svc.attachmentHandler.Download)
			protected.DELETE("/attachments/:id", svc.attachmentHandler.Delete)

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", svc.notificationHandler.List)
				notifications.GET("/unread-count", svc.notificationHandler.UnreadCount)
				notifications.PUT("/read/all", svc.notificationHandler.MarkAllRead)
				notifications.PUT("/:id/read", svc.notificationHandler.MarkRead)
				notifications.DELETE("", svc.notificationHandler.ClearAll)
			}

			// Users
			protected.PUT("/users/me", svc.userHandler.UpdateProfile)
			protected.GET("/users", middleware.RoleRequired(models.RoleAdmin, models.RolePM), svc.userHandler.List)

			// Admin only
			admin := protected.Group("", middleware.AdminRequired(), middleware.AuditLog())
			{
				admin.PUT("/users/:id/role", svc.userHandler.AssignRole)
				admin.GET("/system-logs", svc.systemLogHandler.List)
				admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
				admin.GET("/system-config", svc.systemConfigHandler.List)
				admin.PUT("/system-config/:key", svc.systemConfigHandler.Update)
			}
		}
	}
}
