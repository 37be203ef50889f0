// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/handlers"
	"github.com/javajoker/dealflow-backend/internal/middleware"
	"github.com/javajoker/dealflow-backend/internal/services"
)

// Services are the collaborators the HTTP surface is built on.
type Services struct {
	DB       *gorm.DB
	Deals    *services.DealService
	Webhooks *services.WebhookService
	Auth     middleware.ActorResolver
	Gatherer prometheus.Gatherer
}

// Initialize builds the engine. ctx bounds the background goroutines the
// middleware starts.
func Initialize(ctx context.Context, cfg *config.Config, svc Services, log *logrus.Logger) *gin.Engine {
	dealHandler := handlers.NewDealHandler(svc.Deals)
	requestHandler := handlers.NewRequestHandler(svc.Deals)
	profitHandler := handlers.NewProfitHandler(svc.Deals)
	paymentHandler := handlers.NewPaymentHandler(svc.Deals, svc.Webhooks)
	adminHandler := handlers.NewAdminHandler(svc.Deals)

	generalLimiter := middleware.NewRateLimiter(rate.Every(100*time.Millisecond), 20)
	paymentLimiter := middleware.NewRateLimiter(rate.Every(6*time.Second), 5)
	go generalLimiter.Run(ctx)
	go paymentLimiter.Run(ctx)

	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.SystemActor(cfg.Deal.SystemActorID))

	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if svc.DB != nil {
			if sqlDB, err := svc.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})

	gatherer := svc.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		// The gateway signs the payload; no bearer token.
		v1.POST("/webhooks/stripe", paymentHandler.HandleStripeWebhook)

		authed := v1.Group("")
		authed.Use(middleware.AuthRequired(svc.Auth))
		authed.Use(generalLimiter.Middleware())

		deals := authed.Group("/deals")
		{
			deals.POST("", dealHandler.CreateDeal)
			deals.GET("", dealHandler.ListDeals)
			deals.GET("/mine", dealHandler.ListMyDeals)
			deals.GET("/:id", dealHandler.GetDeal)
			deals.PUT("/:id", dealHandler.EditDeal)
			deals.DELETE("/:id", dealHandler.DeleteDeal)
			deals.GET("/:id/history", dealHandler.GetDealHistory)

			deals.POST("/:id/accept-offer", dealHandler.AcceptOffer)
			deals.POST("/:id/discuss-offer", dealHandler.DiscussOffer)
			deals.POST("/:id/respond-to-offer", dealHandler.RespondToOffer)

			deals.POST("/:id/sign", dealHandler.SignContract)
			deals.GET("/:id/contract/verify", dealHandler.VerifyContract)

			deals.POST("/:id/terminate", dealHandler.RequestTermination)
			deals.POST("/:id/respond-to-termination", dealHandler.RespondToTermination)
			deals.POST("/:id/renew", dealHandler.RequestRenewal)

			deals.GET("/:id/messages", dealHandler.ListMessages)
			deals.GET("/:id/transactions", dealHandler.ListTransactions)
			deals.GET("/:id/change-requests", requestHandler.ListChangeRequests)
			deals.GET("/:id/profit-distributions", profitHandler.ListDistributions)
			deals.POST("/:id/profit-distributions", profitHandler.CreateDistribution)

			payments := deals.Group("")
			payments.Use(paymentLimiter.Middleware())
			payments.POST("/:id/fund", paymentHandler.InitiateFunding)
			payments.POST("/:id/fund/confirm", paymentHandler.ConfirmFunding)
			payments.POST("/:id/change-payment", paymentHandler.ProcessChangePayment)
			payments.POST("/:id/change-payment/confirm", paymentHandler.ConfirmChangePayment)
		}

		authed.POST("/messages/:id/read", dealHandler.MarkMessageRead)
		authed.POST("/change-requests/:id/respond", requestHandler.RespondToChangeRequest)
		authed.POST("/delete-requests/:id/respond", requestHandler.RespondToDeleteRequest)

		admin := authed.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.POST("/deals/:id/review-listing", adminHandler.ReviewListing)
			admin.POST("/deals/:id/review", adminHandler.ReviewDeal)
			admin.POST("/deals/:id/resolve-termination", adminHandler.ResolveTermination)
			admin.POST("/deals/:id/complete", adminHandler.CompleteDeal)
			admin.POST("/deals/:id/capital-return/retry", adminHandler.RetryCapitalReturn)
			admin.GET("/deals/:id/payment-issues", adminHandler.ListPaymentIssues)

			admin.POST("/profit-distributions/:id/approve", profitHandler.ApproveDistribution)
			admin.POST("/profit-distributions/:id/reject", profitHandler.RejectDistribution)
			admin.POST("/profit-distributions/:id/pay", profitHandler.PayDistribution)
		}

		// Settlement hook called by the order pipeline with an admin or system token.
		internal := authed.Group("/internal")
		internal.Use(middleware.AdminRequired())
		internal.POST("/sales", profitHandler.RecordSale)
	}

	return r
}
