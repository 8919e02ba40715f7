package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/config"
	"github.com/tesoroschoco/marketplace-api/internal/handlers"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
	"github.com/tesoroschoco/marketplace-api/internal/metrics"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware("api"))

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireTables(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	recorder := metrics.NewRecorder(clients.CloudWatch, cfg.MetricsNamespace)
	r := setupRouter(handlers.HandlerConfig{
		DynamoDBClient:    clients.DynamoDB,
		SQSClient:         clients.SQS,
		CognitoClient:     clients.Cognito,
		UsersTable:        cfg.UsersTable,
		ProductsTable:     cfg.ProductsTable,
		OrdersTable:       cfg.OrdersTable,
		SellerOrdersTable: cfg.SellerOrdersTable,
		QueueURL:          cfg.NotificationQueue,
		CheckoutTimeout:   cfg.CheckoutTimeout,
		CheckoutRetries:   cfg.CheckoutRetries,
		OutcomeRecorder:   recorder,
		EventRecorder:     recorder,
	})

	// RUN_LOCAL=true runs a plain HTTP server for development.
	if cfg.RunLocal {
		addr := ":" + cfg.ServerPort
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
