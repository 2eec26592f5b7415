package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"lexpost/config"
	"lexpost/internal/auth"
	"lexpost/internal/authz"
	"lexpost/internal/handler"
	"lexpost/internal/middleware"
	"lexpost/internal/repository"
	"lexpost/internal/service"
	"lexpost/internal/ws"
	"lexpost/pkg/cloudinary"
	"lexpost/pkg/payment"
)

// Deps are the external collaborators wired into the services.
type Deps struct {
	Identity  auth.IdentityProvider
	Payment   payment.Provider
	Generator service.LetterGenerator // nil disables generation
	Email     service.EmailSender
	Storage   cloudinary.Client
	Events    service.EventPublisher
	Hub       *ws.Hub
	Log       *slog.Logger
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) (*gin.Engine, error) {
	switch cfg.Server.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	az, err := authz.New()
	if err != nil {
		return nil, fmt.Errorf("authz: %w", err)
	}

	// Repositories
	tx := repository.NewTxManager(db)
	profileRepo := repository.NewProfileRepository(db)
	letterRepo := repository.NewLetterRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Services
	notifSvc := service.NewNotificationService(notificationRepo, deps.Events, log.With("component", "notifications"))
	referralSvc := service.NewReferralService(tx, referralRepo, profileRepo, subRepo, settingRepo, notifSvc, cfg.Referral, log.With("component", "referral"))
	billingSvc := service.NewBillingService(tx, subRepo, profileRepo, referralSvc, deps.Payment, az, notifSvc, deps.Events, cfg.Plans, cfg.Payment, log.With("component", "billing"))
	profileSvc := service.NewProfileService(tx, profileRepo, subRepo, referralSvc, deps.Events, log.With("component", "profiles"))
	adminSvc := service.NewAdminService(adminRepo, settingRepo, referralSvc, log.With("component", "admin"))
	letterSvc := service.NewLetterService(service.LetterDeps{
		Tx:          tx,
		Letters:     letterRepo,
		Subs:        subRepo,
		Authz:       az,
		Generator:   deps.Generator,
		Renderer:    service.NewRenderer(),
		Email:       deps.Email,
		Notifier:    notifSvc,
		Events:      deps.Events,
		Attachments: deps.Storage,
		Log:         log.With("component", "letters"),
	}, service.LetterOptions{
		RequireSubscription: cfg.Letters.RequireSubscription,
		AttachmentFolder:    cfg.Cloudinary.Folder,
	})

	// Handlers
	letterHandler := handler.NewLetterHandler(letterSvc)
	attachmentHandler := handler.NewAttachmentHandler(letterSvc)
	meHandler := handler.NewMeHandler(profileSvc, billingSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	referralHandler := handler.NewReferralHandler(referralSvc)
	subscriptionHandler := handler.NewSubscriptionHandler(billingSvc)
	adminHandler := handler.NewAdminHandler(adminSvc, profileSvc, referralSvc)
	webhookHandler := handler.NewPaymentWebhookHandler(billingSvc, log.With("component", "webhook"))

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(log), middleware.RequestLogger(log.With("component", "http")), middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhooks/payment", webhookHandler.Handle)

	if deps.Hub != nil {
		r.GET("/ws/events", ws.ServeEvents(deps.Identity, deps.Hub, func(ctx context.Context, uc *auth.UserContext) (bool, error) {
			p, err := profileSvc.EnsureProfile(ctx, uc)
			if err != nil {
				return false, err
			}
			return az.Can(p.Role, authz.LetterSubscribeAll), nil
		}, log.With("component", "ws")))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(deps.Identity, profileSvc))
	if cfg.RateLimit.Requests > 0 {
		api.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)))
	}

	me := api.Group("/me")
	me.GET("", meHandler.Get)
	me.PATCH("", meHandler.Update)
	me.GET("/subscriptions", meHandler.Subscriptions)
	me.GET("/notifications", notificationHandler.List)
	me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
	me.GET("/referrals", middleware.RequireCapability(az, authz.ReferralViewOwn), referralHandler.Mine)

	letters := api.Group("/letters")
	letters.POST("", letterHandler.Create)
	letters.GET("", letterHandler.List)
	letters.GET("/:id", letterHandler.Get)
	letters.GET("/:id/history", letterHandler.History)
	letters.GET("/:id/html", letterHandler.HTML)
	letters.POST("/:id/submit", letterHandler.SubmitDraft)
	letters.POST("/:id/generate", letterHandler.Generate)
	letters.POST("/:id/cancel", letterHandler.Cancel)
	letters.PATCH("/:id/status", middleware.RequireCapability(az, authz.LetterTransition), letterHandler.Transition)
	letters.PATCH("/:id/timeline", middleware.RequireCapability(az, authz.LetterTimeline), letterHandler.UpdateTimeline)
	letters.PATCH("/:id/review", middleware.RequireCapability(az, authz.LetterReview), letterHandler.Review)
	letters.POST("/:id/send-email", letterHandler.SendEmail)
	letters.POST("/:id/attachments", attachmentHandler.Upload)
	letters.GET("/:id/attachments", attachmentHandler.List)
	letters.DELETE("/:id", letterHandler.Delete)

	api.POST("/coupons/validate", referralHandler.Validate)

	subs := api.Group("/subscriptions")
	subs.GET("/quote", subscriptionHandler.Quote)
	subs.POST("/checkout", subscriptionHandler.Checkout)
	subs.POST("/:id/cancel", subscriptionHandler.Cancel)

	admin := api.Group("/admin")
	admin.GET("/dashboard", middleware.RequireCapability(az, authz.AdminDashboard), adminHandler.Dashboard)
	admin.GET("/profiles", middleware.RequireCapability(az, authz.AdminManageProfiles), adminHandler.ListProfiles)
	admin.PATCH("/profiles/:id/role", middleware.RequireCapability(az, authz.AdminManageProfiles), adminHandler.ChangeRole)
	admin.PATCH("/coupons/:id", middleware.RequireCapability(az, authz.AdminManageCoupons), adminHandler.UpdateCoupon)
	admin.GET("/commissions", middleware.RequireCapability(az, authz.AdminCommissions), adminHandler.Commissions)
	admin.GET("/settings", middleware.RequireCapability(az, authz.AdminSettings), adminHandler.Settings)
	admin.PUT("/settings/:key", middleware.RequireCapability(az, authz.AdminSettings), adminHandler.UpdateSetting)

	return r, nil
}
