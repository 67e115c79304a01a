package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bikeshare-dashboard/config"
	"bikeshare-dashboard/internal/api"
	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/loader"
	"bikeshare-dashboard/internal/mqtt"
	"bikeshare-dashboard/internal/rentals"
	"bikeshare-dashboard/internal/storage"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bikeshare-dashboard",
		Short: "Bike sharing rentals dashboard",
		Long:  "Serve daily bike rental statistics with date filtering, customer type totals and temperature trends",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard service",
		Long:  "Load the dataset, then start the API server, reload scheduler and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Create database
			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			log.Printf("Database opened at %s", cfg.Database.Path)

			// Create MQTT publisher
			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
				publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false})
			} else if cfg.MQTT.Enabled {
				log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
				if err := publisher.PublishHomeAssistantDiscovery(); err != nil {
					log.Printf("Warning: Home Assistant discovery failed: %v", err)
				}
			}
			defer publisher.Close()

			ds := dataset.New(dataset.DatasetConfig{
				Path:           cfg.Dataset.Path,
				Store:          db,
				Publisher:      publisher,
				ReloadInterval: cfg.Dataset.ReloadInterval,
			})

			// Setup context for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			if err := ds.Start(ctx); err != nil {
				return err
			}
			defer ds.Stop()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:    cfg.API.Port,
					Dataset: ds,
					Broker:  publisher,
					Weather: cfg.Weather,
				})

				go func() {
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Printf("API server error: %v", err)
					}
				}()
			}

			log.Println("Bikeshare dashboard started. Press Ctrl+C to stop.")

			// Wait for signal
			<-sigChan
			log.Println("Shutting down...")
			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Printf("API server shutdown error: %v", err)
				}
			}

			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [csv]",
		Short: "Import the rentals CSV into the database",
		Long:  "Parse the rentals CSV and replace the stored table with its rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			path := cfg.Dataset.Path
			if len(args) == 1 {
				path = args[0]
			}

			table, err := loader.LoadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read dataset: %w", err)
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := db.ReplaceTable(path, table); err != nil {
				return fmt.Errorf("failed to store dataset: %w", err)
			}

			count, err := db.CountRentals()
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d rows from %s\n", count, path)
			if bounds, err := db.DateBounds(); err == nil {
				fmt.Printf("  Date range: %s\n", bounds)
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard for a date range",
		Long:  "Print the dashboard JSON for a date range using the stored table, or the CSV when the database is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			startDay, err := parseFlagDay("start", start)
			if err != nil {
				return err
			}
			endDay, err := parseFlagDay("end", end)
			if err != nil {
				return err
			}

			table, err := reportTable(cfg)
			if err != nil {
				return err
			}

			dashboard := rentals.Build(table, table.Resolve(startDay, endDay))
			output, _ := json.MarshalIndent(dashboard, "", "  ")
			fmt.Println(string(output))

			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of the range (YYYY-MM-DD)")
	return cmd
}

func parseFlagDay(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := rentals.ParseDay(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, value)
	}
	return d, nil
}

func reportTable(cfg *config.Config) (rentals.Table, error) {
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	table, err := db.LoadTable()
	if err != nil {
		return nil, fmt.Errorf("failed to load stored dataset: %w", err)
	}
	if len(table) > 0 {
		if entry, err := db.LastImport(); err == nil && verbose {
			log.Printf("Using %d stored rows imported from %s at %s", entry.Rows, entry.Source, entry.ImportedAt.Format(time.RFC3339))
		}
		return table, nil
	}

	if verbose {
		log.Printf("Database is empty, reading %s", cfg.Dataset.Path)
	}
	table, err = loader.LoadFile(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return table, nil
}
