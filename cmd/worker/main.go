package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(clients.SES, cfg.SenderAddress)

	// RUN_LOCAL=true processes one simulated event and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"type":"order_confirmed","recipient":"dev@example.com","data":{"order_id":"local-order-1","total_price":"10.00"}}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{Body: body}},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
