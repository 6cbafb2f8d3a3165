package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"myswing/internal/app"
	"myswing/internal/config"
	"myswing/internal/swing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError shows classified errors by their user-facing message. The raw
// text only goes to the log.
func printError(w io.Writer, err error) {
	var se *swing.Error
	if !errors.As(err, &se) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	m := se.Message()
	fmt.Fprintf(w, "%s\n  %s\n", m.Title, m.Message)
	if m.Suggestion != "" {
		fmt.Fprintf(w, "  %s\n", m.Suggestion)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Analyze", "ListAnalyses").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, app.Options{Operation: operation, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// withApp runs fn against a fresh App and records its outcome.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, operation)
	if err != nil {
		return err
	}
	defer a.Close()

	err = fn(ctx, a)
	a.Finish(err)
	return err
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "myswing",
	Short:         "Golf swing analysis client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])
		cfg.Backend.URL, _ = cmd.Flags().GetString("backend-url")
		cfg.Backend.AnonKey, _ = cmd.Flags().GetString("anon-key")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		if cfg.Backend.URL == "" {
			fmt.Println("Set backend.url and backend.anon_key before signing in.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID:   %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Backend:     %s\n", cfg.Backend.URL)
		fmt.Printf("Storage:     %s\n", cfg.Storage.Type)
		fmt.Printf("KV Store:    %s\n", cfg.KVStore.Type)
		fmt.Printf("Encoder:     %s\n", cfg.Encoder.Type)
		fmt.Printf("Credentials: %s\n", cfg.Credentials.Type)
		fmt.Printf("Target MB:   %.1f\n", cfg.Workflow.TargetMB)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("backend-url", "", "Backend project URL")
	configInitCmd.Flags().String("anon-key", "", "Backend anonymous API key")

	// auth subcommands
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)
	authSignupCmd.Flags().Bool("remember", false, "Keep the session for later commands")
	authLoginCmd.Flags().Bool("remember", false, "Keep the session for later commands")

	// analyze and friends
	analyzeCmd.Flags().Bool("gallery", false, "Treat the video as picked from the gallery")
	analyzeCmd.Flags().Bool("recorded", false, "Treat the video as recorded in-app")
	analyzeCmd.MarkFlagsMutuallyExclusive("gallery", "recorded")
	analyzeCmd.Flags().String("club", "", "Club used (e.g. driver, 7-iron)")
	analyzeCmd.Flags().String("angle", "", "Camera angle (e.g. down-the-line, face-on)")
	analyzeCmd.Flags().String("shot", "", "Shot type (e.g. full, chip)")
	analyzeCmd.Flags().String("notes", "", "Notes for the coach")
	analyzeCmd.Flags().Float64("target-mb", 0, "Upload size to compress to")
	analyzeCmd.Flags().Bool("no-wait", false, "Print the job id instead of waiting for the result")

	validateCmd.Flags().Bool("gallery", false, "Use the gallery policy")
	validateCmd.Flags().Bool("recorded", false, "Use the recorded policy")
	validateCmd.MarkFlagsMutuallyExclusive("gallery", "recorded")

	scanCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")

	estimateCmd.Flags().Float64("quality", 0, "Quality in (0, 1]; planned when unset")
	estimateCmd.Flags().String("resolution", "", "original, 720p or 480p")
	estimateCmd.Flags().Float64("target-mb", swing.DefaultTargetSizeMB, "Upload size to plan for")

	jobCmd.AddCommand(jobWatchCmd)

	// analyses subcommands
	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	analysesCmd.AddCommand(analysesDeleteCmd)
	analysesCmd.AddCommand(analysesURLCmd)
	analysesListCmd.Flags().IntP("limit", "n", 20, "Maximum number of analyses to show")
	analysesDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")

	// profile subcommands
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileSetCmd.Flags().String("name", "", "Display name")
	profileSetCmd.Flags().Float64("handicap", 0, "Handicap index")
	profileSetCmd.Flags().String("hand", "", "Dominant hand (left or right)")

	homeCmd.Flags().Float64("lat", 0, "Latitude for current conditions")
	homeCmd.Flags().Float64("lon", 0, "Longitude for current conditions")
	homeCmd.MarkFlagsRequiredTogether("lat", "lon")

	cacheCmd.AddCommand(cacheClearCmd)

	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(analysesCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
}
