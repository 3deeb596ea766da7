package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/assetmanager/internal/httpapi"
	"github.com/your-org/assetmanager/internal/ingestion"
	"github.com/your-org/assetmanager/internal/jobstatus"
	"github.com/your-org/assetmanager/internal/notification"
	"github.com/your-org/assetmanager/internal/streaming"
	"github.com/your-org/assetmanager/pkg/config"
	"github.com/your-org/assetmanager/pkg/eventgrid"
	"github.com/your-org/assetmanager/pkg/kafka"
	"github.com/your-org/assetmanager/pkg/logger"
	"github.com/your-org/assetmanager/pkg/mediaservice"
	"github.com/your-org/assetmanager/pkg/storage/objectstore"
	"github.com/your-org/assetmanager/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(logger.Options{
		Level:   cfg.App.LogLevel,
		Format:  cfg.App.LogFormat,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	store, err := objectstore.New(objectstore.Config{
		Provider:         cfg.Storage.Provider,
		ConnectionString: cfg.Storage.ConnectionString,
		Endpoint:         cfg.Storage.Endpoint,
		Region:           cfg.Storage.Region,
		AccessKey:        cfg.Storage.AccessKey,
		SecretKey:        cfg.Storage.SecretKey,
		UseSSL:           cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		logr.Fatal("init event publisher", zap.Error(err))
	}

	media := mediaservice.NewBuilder(mediaservice.Credentials{
		TenantID:     cfg.MediaService.TenantID,
		ClientID:     cfg.MediaService.ClientID,
		ClientSecret: cfg.MediaService.ClientSecret,
		APIEndpoint:  cfg.MediaService.APIEndpoint,
	}, &mediaservice.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: cfg.MediaService.MaxRetries},
		},
		APIVersion: cfg.MediaService.APIVersion,
		Scope:      cfg.MediaService.TokenScope,
	})

	service := ingestion.NewService(ingestion.Params{
		Store:     store,
		Publisher: publisher,
		Media:     media,
		Logger:    logr.Named("ingestion"),
		Settings: ingestion.Settings{
			PathPrefix:         cfg.Ingest.PathPrefix,
			ContentType:        cfg.Ingest.ContentType,
			WebhookName:        cfg.Webhook.Name,
			WebhookURL:         cfg.Webhook.URL,
			WebhookKey:         cfg.Webhook.AccessKey,
			MediaProcessor:     cfg.Encoder.MediaProcessor,
			Preset:             cfg.Encoder.Preset,
			DeletePreviousJobs: cfg.Encoder.DeletePreviousJobs,
			WriteLocatorTTL:    cfg.Encoder.WriteLocatorTTL,
			PublishTimeout:     cfg.Events.PublishTimeout,
		},
	})

	resolver := streaming.NewResolver(logr.Named("streaming"))

	notifications, err := notification.NewHandler(notification.Params{
		Media:           media,
		Resolver:        resolver,
		Logger:          logr.Named("notification"),
		SigningKey:      cfg.Webhook.AccessKey,
		VerifySignature: cfg.Webhook.VerifySignature,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
	})
	if err != nil {
		logr.Fatal("init notification handler", zap.Error(err))
	}

	status := jobstatus.NewHandler(jobstatus.Params{
		Media:        media,
		Resolver:     resolver,
		Logger:       logr.Named("jobstatus"),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})

	router := httpapi.NewRouter(cfg.HTTP.RequestTimeout,
		ingestion.NewHTTPHandler(service, logr.Named("ingestion"), cfg.HTTP.MaxBodyBytes),
		notifications,
		status,
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("asset manager starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("publisher", cfg.Events.Publisher),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func newPublisher(cfg config.Config) (ingestion.Publisher, error) {
	switch strings.ToLower(cfg.Events.Publisher) {
	case "eventgrid", "event-grid":
		client, err := eventgrid.NewClient(cfg.Events.TopicHost, cfg.Events.TopicKey, nil)
		if err != nil {
			return nil, err
		}
		return ingestion.NewGridPublisher(client), nil
	case "kafka":
		return ingestion.NewKafkaPublisher(kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.JobEventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})), nil
	case "none", "":
		return ingestion.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported event publisher: %s", cfg.Events.Publisher)
	}
}
