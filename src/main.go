package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventconsumers"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventproducers/syncapi"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
	"github.com/oakmont-systems/futures-engine/src/eventservices"
	"github.com/oakmont-systems/futures-engine/src/utils"
)

func credentialsFromEnv() brokerclient.Credentials {
	return brokerclient.Credentials{
		Name:       os.Getenv("BROKER_USERNAME"),
		Password:   os.Getenv("BROKER_PASSWORD"),
		AppID:      os.Getenv("BROKER_APP_ID"),
		AppVersion: os.Getenv("BROKER_APP_VERSION"),
		CID:        os.Getenv("BROKER_CID"),
		SecretKey:  os.Getenv("BROKER_SECRET"),
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Fatalf("failed to initialize environment: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	// setup pubsub
	eventpubsub.Init()

	// setup broker client + shared state
	client := brokerclient.NewClient(cfg.Broker.RestEndpoint(), cfg.Broker.WsEndpoint(), credentialsFromEnv())
	orders := eventmodels.NewOrderDataStore()
	correlations := eventmodels.NewCorrelationStore()
	resolver := eventservices.NewContractResolver(client, eventservices.DefaultContractCacheTTL)
	gateway := eventservices.NewOrderGateway(client, resolver, orders, correlations)

	wg := sync.WaitGroup{}

	syncInterval := time.Duration(cfg.Sync.IntervalHours) * time.Hour
	reconciler := eventconsumers.NewReconciliationWorker(&wg, client, gateway, orders, correlations, cfg.Broker.AccountIDs, syncInterval, cfg.Sync.MarketHoursEnabled)
	router := eventconsumers.NewEventRouter(&wg, client, orders, correlations, reconciler)
	signals := eventconsumers.NewSignalConsumer(gateway, router)

	// authenticate and sync local state before accepting push events
	if _, err := client.Authenticate(ctx); err != nil {
		log.Errorf("initial authentication failed, will retry on connect: %v", err)
	} else if err := reconciler.StartupSync(ctx); err != nil {
		log.Errorf("startup sync incomplete: %v", err)
	}

	client.Start(ctx, &wg)
	router.Start(ctx)
	signals.Start(ctx)

	if cfg.Sync.ScheduledEnabled {
		reconciler.Start(ctx)
	}

	// setup router
	apiRouter := mux.NewRouter()
	syncapi.SetupHandler(apiRouter, client)

	srv := &http.Server{
		Handler: apiRouter,
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
	}

	go func() {
		log.Infof("listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil {
			if err.Error() != "http: Server closed" {
				log.Fatalf("http: failed to listen and serve: %v", err)
			}
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down server: %v", err)
	}

	wg.Wait()
	log.Info("Server gracefully stopped")
}
