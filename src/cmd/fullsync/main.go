package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oakmont-systems/futures-engine/src/brokerclient"
	"github.com/oakmont-systems/futures-engine/src/eventconsumers"
	"github.com/oakmont-systems/futures-engine/src/eventmodels"
	"github.com/oakmont-systems/futures-engine/src/eventpubsub"
	"github.com/oakmont-systems/futures-engine/src/eventservices"
	"github.com/oakmont-systems/futures-engine/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/fullsync/main.go --dry-run",
	Short: "Run a one-shot full reconciliation against the broker",
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			log.Fatalf("error getting dry-run: %v", err)
		}

		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		stats, err := run(dryRun, configPath)
		if err != nil {
			log.Fatalf("full sync failed: %v", err)
		}

		statsJSON, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			log.Fatalf("failed to marshal stats: %v", err)
		}

		fmt.Println(string(statsJSON))
	},
}

func run(dryRun bool, configPath string) (*eventconsumers.SyncStats, error) {
	if err := utils.InitEnvironmentVariables(); err != nil {
		return nil, fmt.Errorf("failed to initialize environment: %w", err)
	}

	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	eventpubsub.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := brokerclient.NewClient(cfg.Broker.RestEndpoint(), cfg.Broker.WsEndpoint(), brokerclient.Credentials{
		Name:       os.Getenv("BROKER_USERNAME"),
		Password:   os.Getenv("BROKER_PASSWORD"),
		AppID:      os.Getenv("BROKER_APP_ID"),
		AppVersion: os.Getenv("BROKER_APP_VERSION"),
		CID:        os.Getenv("BROKER_CID"),
		SecretKey:  os.Getenv("BROKER_SECRET"),
	})

	if _, err := client.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	orders := eventmodels.NewOrderDataStore()
	correlations := eventmodels.NewCorrelationStore()
	resolver := eventservices.NewContractResolver(client, eventservices.DefaultContractCacheTTL)
	gateway := eventservices.NewOrderGateway(client, resolver, orders, correlations)

	wg := sync.WaitGroup{}
	reconciler := eventconsumers.NewReconciliationWorker(&wg, client, gateway, orders, correlations, cfg.Broker.AccountIDs, time.Hour, false)

	return reconciler.FullSync(ctx, dryRun, "cli")
}

func main() {
	runCmd.PersistentFlags().Bool("dry-run", false, "compute sync stats without any cancel or publish side effects")
	runCmd.PersistentFlags().String("config", "config.yaml", "path to the engine config file")

	if err := runCmd.Execute(); err != nil {
		log.Fatalf("error executing command: %v", err)
	}
}
