package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/envmonitor/envmonitor/internal/config"
	"github.com/envmonitor/envmonitor/internal/controller"
	"github.com/envmonitor/envmonitor/internal/evaluator"
	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/store"
	"github.com/envmonitor/envmonitor/internal/tsdb"
	"github.com/envmonitor/envmonitor/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("controller")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open store")
	}
	defer st.Close()

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "envmonitor-controller"
	}
	mqClient, err := mqtt.NewConn(&mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: clientID,
	}, ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	consumer := mqtt.NewConsumer(mqClient, cfg.MQTT.Topic, nil)

	var mirror controller.ReadingMirror
	if cfg.Influx.Enabled() {
		writer := tsdb.New(cfg.Influx, cfg.MQTT.Topic)
		defer writer.Close()
		mirror = writer
		log.Info().Str("url", cfg.Influx.URL).Msg("reading mirror enabled")
	}

	notifier := controller.NewHTTPNotifier(cfg.Server.IntakeURL(), 3*time.Second)
	svc := controller.NewService(consumer, st, notifier, mirror, evaluator.Thresholds{
		TempMax:     cfg.Thresholds.TempMax,
		HumidityMin: cfg.Thresholds.HumidityMin,
	})

	go controller.RunRetentionSweep(ctx, st, cfg.Retention.Days, cfg.Retention.SweepEvery)

	// Ops endpoint: metrics plus a liveness probe for the ingestion process.
	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", promhttp.Handler())
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := st.Ping(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	opsSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.OpsPort),
		Handler:           opsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.OpsPort).Msg("ops endpoint listening")
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops server error")
		}
	}()

	go svc.Start(ctx)
	log.Info().
		Str("broker", cfg.MQTT.Broker).
		Str("topic", cfg.MQTT.Topic).
		Float64("temp_max", cfg.Thresholds.TempMax).
		Float64("humidity_min", cfg.Thresholds.HumidityMin).
		Msg("ingestion started")

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = opsSrv.Shutdown(shCtx)
	mqtt.CloseConn(mqClient)
	log.Info().Msg("controller shutdown complete")
}
