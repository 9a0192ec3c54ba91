package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"

	"github.com/checkmarxDev/chatbot-worker/internal/batch"
	"github.com/checkmarxDev/chatbot-worker/internal/blob"
	"github.com/checkmarxDev/chatbot-worker/internal/config"
	"github.com/checkmarxDev/chatbot-worker/internal/invoker"
	"github.com/checkmarxDev/chatbot-worker/internal/notify"
	"github.com/checkmarxDev/chatbot-worker/internal/session"
	"github.com/checkmarxDev/chatbot-worker/pkg/connector"
	"github.com/checkmarxDev/chatbot-worker/pkg/models"
	"github.com/checkmarxDev/chatbot-worker/pkg/wrapper"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chatbot-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx := context.Background()
	coordinator, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}
	defer cleanup()

	lambda.Start(newHandler(coordinator))
}

func build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*batch.Coordinator, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("close failed")
			}
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, cleanup, fmt.Errorf("load aws config: %w", err)
	}

	registry, err := newRegistry(cfg, awsCfg, log)
	if err != nil {
		return nil, cleanup, err
	}

	store, closeStore, err := newStore(ctx, cfg, awsCfg)
	if err != nil {
		return nil, cleanup, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	publisher, closePublisher, err := newPublisher(cfg, awsCfg)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	if closePublisher != nil {
		closers = append(closers, closePublisher)
	}

	signer := blob.NewS3Signer(s3.NewPresignClient(s3.NewFromConfig(awsCfg)), cfg.FilesBucket, cfg.SignedURLTTL)
	stateless := wrapper.NewStatelessWrapper(registry, signer, nil)
	stateful := wrapper.NewStatefulWrapper(session.NewRecorder(store), stateless, publisher, log)

	coordinator := batch.NewCoordinator(stateful, publisher,
		batch.WithConcurrency(cfg.MaxConcurrency),
		batch.WithRetry(batch.RetryPolicy{MaxAttempts: cfg.InvokeMaxAttempts}),
		batch.WithLogger(log),
	)
	return coordinator, cleanup, nil
}

func newRegistry(cfg *config.Config, awsCfg aws.Config, log zerolog.Logger) (*invoker.Registry, error) {
	registry := invoker.NewRegistry(
		invoker.WithTimeout(cfg.InvokeTimeout),
		invoker.WithEndpointAliases(cfg.EndpointAliases),
		invoker.WithLogger(log),
	)

	sagemaker := invoker.NewSageMaker(sagemakerruntime.NewFromConfig(awsCfg), invoker.EchoedPrompt{})
	registry.Register(models.SageMaker, sagemaker)
	registry.Register(models.Idefics, sagemaker)
	registry.Register(models.Bedrock, invoker.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), invoker.ContinuationOnly{}))

	if cfg.AzureEnabled() {
		client, err := invoker.NewAzureOpenAIClient(cfg.AzureEndpoint, cfg.AzureAPIKey)
		if err != nil {
			return nil, fmt.Errorf("azure openai client: %w", err)
		}
		registry.Register(models.AzureOpenAI, invoker.NewAzureOpenAI(client))
	}
	return registry, nil
}

func newStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (connector.Connector, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite, config.StorePostgres:
		driver := connector.DriverSQLite
		if cfg.StoreBackend == config.StorePostgres {
			driver = connector.DriverPostgres
		}
		sqlStore, err := connector.OpenSQLConnector(driver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		if err := sqlStore.Migrate(ctx); err != nil {
			_ = sqlStore.Close()
			return nil, nil, fmt.Errorf("migrate session store: %w", err)
		}
		return sqlStore, sqlStore.Close, nil
	case config.StoreFS:
		return connector.NewFileSystemConnector(cfg.StoreDSN), nil, nil
	default:
		return connector.NewDynamoConnector(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable), nil, nil
	}
}

func newPublisher(cfg *config.Config, awsCfg aws.Config) (notify.Publisher, func() error, error) {
	if cfg.NotifyBackend == config.NotifyAMQP {
		p, err := notify.DialAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("dial amqp: %w", err)
		}
		return p, p.Close, nil
	}
	return notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.MessagesTopicArn), nil, nil
}

func newHandler(coordinator *batch.Coordinator) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		records := make([]batch.Record, 0, len(event.Records))
		for _, r := range event.Records {
			records = append(records, batch.Record{MessageID: r.MessageId, Body: r.Body})
		}

		report := coordinator.Process(ctx, records)

		resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
		for _, id := range report.FailedIDs() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
		return resp, nil
	}
}
