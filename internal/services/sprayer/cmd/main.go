package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/sprayer_project/internal/services/analyzer"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sensorstore"
	controller "github.com/LeonardoBeccarini/sprayer_project/internal/services/spray-controller"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sprayer"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/dedup"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := sensorstore.New()
	ctrl := controller.NewController(store, controller.WithLogger(logger))
	metrics := sprayer.NewMetrics()

	opts := []sprayer.Option{
		sprayer.WithLogger(logger),
		sprayer.WithMetrics(metrics),
		sprayer.WithDeviceID(cfg.DeviceID),
	}

	if a := analyzer.New(analyzer.Config{
		BaseURL:    cfg.AnalyzerURL,
		Timeout:    time.Duration(cfg.AnalyzerTimeoutMs) * time.Millisecond,
		MaxRetries: cfg.AnalyzerRetries,
		Breaker:    analyzer.NewBreaker("analyzer", cfg.CBFails, cfg.CBOpenMs, cfg.CBIntervalMs),
		Logger:     logger,
	}); a != nil {
		opts = append(opts, sprayer.WithAnalyzer(a))
		logger.Printf("sprayer: analyzer at %s", cfg.AnalyzerURL)
	} else {
		logger.Println("sprayer: ANALYZER_URL not set, /analyze disabled")
	}

	// MQTT
	var consumer *rabbitmq.MultiConsumer
	if cfg.MQTTEnabled {
		clientID := fmt.Sprintf("Sprayer-%s", getenv("HOSTNAME", "local"))
		mq, err := rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
			Host: cfg.RabbitHost, Port: cfg.RabbitPort,
			User: cfg.RabbitUser, Password: cfg.RabbitPassword,
			ClientID: clientID, Logger: logger,
		}, ctx)
		if err != nil {
			logger.Fatalf("MQTT connect failed: %v", err)
		}
		act := sprayer.NewMQTTActuator(mq, cfg.CommandTopicTemplate, cfg.DeviceID)
		opts = append(opts, sprayer.WithActuator(act))
		logger.Printf("sprayer: commands published on %s", act.Topic())

		consumer = rabbitmq.NewMultiConsumer(mq, cfg.SensorTopics, nil)
		consumer.SetLogger(logger)
	}

	svc := sprayer.New(store, ctrl, opts...)

	if consumer != nil {
		consumer.SetHandler(svc.SensorHandler(dedup.New(cfg.DedupTTL, 10000)))
		go consumer.ConsumeMessage(ctx)
	}

	// gRPC: commands go through the service so the actuator is notified
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatalf("grpc listen: %v", err)
	}
	gs := grpc.NewServer()
	controller.RegisterSprayControlServer(gs, controller.NewGrpcHandler(svc, logger))
	go func() {
		logger.Printf("sprayer: gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			logger.Printf("grpc serve: %v", err)
		}
	}()

	// HTTP
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sprayer.NewAPI(svc, cfg.MaxImageBytes).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("sprayer: HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("sprayer: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	gs.GracefulStop()
}
