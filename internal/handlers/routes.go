// Package handlers registers the HTTP surface: public catalog routes plus
// the authenticated buyer, seller, admin and profile route groups.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/checkout"
	"github.com/tesoroschoco/marketplace-api/internal/notifications"
	"github.com/tesoroschoco/marketplace-api/internal/orders"
	"github.com/tesoroschoco/marketplace-api/internal/products"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// EventRecorder counts named application events. Implementations must be
// best-effort; handlers never fail on recording.
type EventRecorder interface {
	Event(ctx context.Context, name string)
}

// HandlerConfig groups the dependencies the route groups need.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	SQSClient      aws.SQSAPI
	CognitoClient  aws.CognitoAPI

	UsersTable        string
	ProductsTable     string
	OrdersTable       string
	SellerOrdersTable string
	QueueURL          string

	CheckoutTimeout time.Duration
	CheckoutRetries int
	OutcomeRecorder checkout.OutcomeRecorder
	EventRecorder   EventRecorder
}

// deps is the assembled dependency bundle shared by the route groups.
type deps struct {
	validate    *validatorv10.Validate
	users       *users.Store
	products    *products.Store
	orders      *orders.Store
	coordinator *checkout.Coordinator
	notifier    *notifications.Notifier
	verifier    *auth.Verifier
	mw          *auth.Middleware
	events      EventRecorder
}

// RegisterRoutes wires every route group onto the engine.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	usersStore := users.NewStore(cfg.DynamoDBClient, cfg.UsersTable)
	verifier := auth.NewVerifier(cfg.CognitoClient)

	d := &deps{
		validate: validation.New(),
		users:    usersStore,
		products: products.NewStore(cfg.DynamoDBClient, cfg.ProductsTable),
		orders:   orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable, cfg.SellerOrdersTable),
		coordinator: checkout.New(checkout.Config{
			DynamoDB:          cfg.DynamoDBClient,
			UsersTable:        cfg.UsersTable,
			ProductsTable:     cfg.ProductsTable,
			OrdersTable:       cfg.OrdersTable,
			SellerOrdersTable: cfg.SellerOrdersTable,
			Timeout:           cfg.CheckoutTimeout,
			MaxAttempts:       cfg.CheckoutRetries,
			Recorder:          cfg.OutcomeRecorder,
		}),
		notifier: notifications.NewNotifier(aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)),
		verifier: verifier,
		mw:       auth.NewMiddleware(verifier, usersStore),
		events:   cfg.EventRecorder,
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerAuthRoutes(r, d)
	registerProductRoutes(r, d)
	registerUserRoutes(r, d)
	registerBuyerRoutes(r, d)
	registerSellerRoutes(r, d)
	registerAdminRoutes(r, d)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

func (d *deps) countEvent(c *gin.Context, name string) {
	if d.events == nil {
		return
	}
	d.events.Event(c.Request.Context(), name)
}
