// Command notifyctl is the TableTalk notification operations CLI.
//
// Usage:
//
//	notifyctl scan --lookback 2h
//	notifyctl scan --lookback 2h --dry-run
//	notifyctl geo-settings get --user 64f1a2...
//	notifyctl geo-settings set --user 64f1a2... --radius 15
//	notifyctl categories
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/compose"
	"github.com/table-talk25/tabletalk-notify/internal/config"
	"github.com/table-talk25/tabletalk-notify/internal/dispatch"
	"github.com/table-talk25/tabletalk-notify/internal/pipeline"
	"github.com/table-talk25/tabletalk-notify/internal/prefs"
	"github.com/table-talk25/tabletalk-notify/internal/push"
	"github.com/table-talk25/tabletalk-notify/internal/realtime"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "notifyctl",
		Short: "TableTalk notification operations CLI",
	}

	root.AddCommand(scanCmd())
	root.AddCommand(geoSettingsCmd())
	root.AddCommand(categoriesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// scan command
// --------------------------------------------------------------------------

func scanCmd() *cobra.Command {
	var (
		lookback time.Duration
		workers  int
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan-and-notify pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				var provider push.Provider
				var rt realtime.Emitter
				if dryRun {
					logger.Info("Dry run: no notifications will be delivered")
				} else {
					fcm, err := push.NewFCM(ctx, cfg.FCMCredentialsFile, logger)
					if err != nil {
						return fmt.Errorf("init push provider: %w", err)
					}
					provider = fcm
					rt = realtime.NewGateway(cfg.RealtimeGatewayURL)
				}

				resolver := prefs.NewResolver(st, logger)
				composer := compose.New(cfg.DeepLinkBaseURL)
				coordinator := dispatch.NewCoordinator(resolver, composer, provider, rt, st, logger)
				pipe := pipeline.New(st, st, coordinator, workers, logger)

				start := time.Now()
				outcome, err := pipe.Run(ctx, lookback)
				if err != nil {
					return fmt.Errorf("pass failed: %w", err)
				}
				logger.Info("Scan finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", outcome.Summary())
				for _, e := range outcome.Errors {
					logger.Error("dispatch error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&lookback, "lookback", 2*time.Hour, "Scan window for recently created meals")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent dispatch worker count")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Match and resolve preferences without delivering")
	return cmd
}

// --------------------------------------------------------------------------
// geo-settings command
// --------------------------------------------------------------------------

func geoSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geo-settings",
		Short: "Inspect or change a user's geolocation notification settings",
	}
	cmd.AddCommand(geoSettingsGetCmd())
	cmd.AddCommand(geoSettingsSetCmd())
	return cmd
}

func geoSettingsGetCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a user's geo settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				u, err := st.User(ctx, userID)
				if err != nil {
					return fmt.Errorf("fetch user: %w", err)
				}
				logger.Info("Geo settings",
					"user_id", u.ID,
					"enabled", u.Geo.Enabled,
					"radius_km", u.Geo.RadiusKm,
					"meal_types", u.Geo.MealTypes,
					"has_location", u.Geo.Location.Valid())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	return cmd
}

func geoSettingsSetCmd() *cobra.Command {
	var (
		userID  string
		enabled bool
		radius  float64
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update a user's geo settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				upd := store.GeoSettingsUpdate{}
				if cmd.Flags().Changed("enabled") {
					upd.Enabled = &enabled
				}
				if cmd.Flags().Changed("radius") {
					upd.RadiusKm = &radius
				}
				if err := st.UpdateGeoSettings(ctx, userID, upd); err != nil {
					return fmt.Errorf("update geo settings: %w", err)
				}
				u, err := st.User(ctx, userID)
				if err != nil {
					return fmt.Errorf("re-read user: %w", err)
				}
				logger.Info("Geo settings updated",
					"user_id", u.ID,
					"enabled", u.Geo.Enabled,
					"radius_km", u.Geo.RadiusKm)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable geo notifications")
	cmd.Flags().Float64Var(&radius, "radius", 10, "Matching radius in km (1-50)")
	return cmd
}

// --------------------------------------------------------------------------
// categories command
// --------------------------------------------------------------------------

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List supported notification categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := category.Validate(); err != nil {
				return fmt.Errorf("category tables invalid: %w", err)
			}
			for _, c := range category.All() {
				path, _ := c.PreferencePath()
				tpl, _ := c.Template()
				logger.Info("category",
					"name", c,
					"preference_path", path,
					"actions", len(tpl.Actions))
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withStore handles config loading, store connection, and context cancellation.
func withStore(fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connect to record store: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = st.Close(closeCtx)
	}()

	return fn(ctx, cfg, st)
}
