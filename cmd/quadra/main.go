package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quadrabot/quadra/pkg/config"
	"github.com/quadrabot/quadra/pkg/notification"
	"github.com/quadrabot/quadra/pkg/runner"
	"github.com/quadrabot/quadra/pkg/schedule"
	"github.com/quadrabot/quadra/pkg/server"
	"github.com/quadrabot/quadra/pkg/storage"
)

var (
	port    string
	cfg     string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quadra",
	Short: "Quadra Reservation Scheduler",
	Long:  "A scheduling server that fires court reservation attempts at their booking-window opening times",
	Run:   runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&cfg, "config", "c", "config.json", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Bind flags to viper
	if err := viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		log.Printf("Failed to bind port flag: %v", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		log.Printf("Failed to bind config flag: %v", err)
	}
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		log.Printf("Failed to bind verbose flag: %v", err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	conf, err := config.LoadConfig(cfg)
	if err != nil {
		log.Printf("Failed to load config from %s, using defaults: %v", cfg, err)
		conf = config.DefaultConfig()
	}
	if port != "" {
		// Flag wins over file and environment
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("Invalid port: %s", port)
		}
		conf.Port = p
	}

	store, err := storage.NewStore(&conf.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close storage: %v", err)
		}
	}()

	manager := schedule.NewManager(store)
	subscriptions := notification.NewSubscriptionStore(conf.Notification.SubscriptionFile)
	notifier := notification.NewServiceFromEnv(subscriptions)

	workerConfig := schedule.WorkerConfig{
		Enabled:       conf.Worker.Enabled,
		CheckInterval: time.Duration(conf.Worker.CheckIntervalSeconds) * time.Second,
	}
	worker := schedule.NewWorker(manager, runner.NewSimRunner(), notifier, workerConfig)
	if workerConfig.Enabled {
		if err := worker.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start schedule worker: %v", err)
		}
		defer worker.Stop()
	}

	srv := server.New(manager, worker, subscriptions, verbose)

	// Shut down cleanly on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Printf("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + strconv.Itoa(conf.Port)
	log.Printf("Starting quadra on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
