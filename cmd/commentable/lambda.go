package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve the HTTP API as an AWS Lambda behind an API Gateway HTTP API",
	RunE:  runLambda,
}

func runLambda(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	adapter := chiadapter.NewV2(a.router())
	a.logger.Info("starting lambda handler", zap.String("table", a.cfg.Table))

	lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContextV2(ctx, req)
	})
	return nil
}
