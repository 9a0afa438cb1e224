package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/schaermu/portalsync/internal/config"
	"github.com/schaermu/portalsync/internal/git"
	"github.com/schaermu/portalsync/internal/localfs"
	"github.com/schaermu/portalsync/internal/sync"
	"github.com/schaermu/portalsync/internal/threescale"
	"github.com/schaermu/portalsync/internal/webhook"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	rootDir   string

	// Upload flags
	keepAsDraft      bool
	layout           string
	dryRun           bool
	includeUnchanged bool
	deleteMissing    bool
	recurse          bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "portalsync",
	Short: "Upload a local developer portal tree to 3scale",
	Long: `portalsync reconciles a local directory of developer portal content with the
CMS of a 3scale admin portal.

Directories become sections, templates named by their filename suffix become
pages, layouts and partials, and everything else is uploaded as a file.`,
	SilenceUsage: true,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [path...]",
	Short: "Upload changed content to the CMS",
	Long: `Upload compares the local tree with the remote CMS and uploads what is new
or newer locally.

Without arguments every changed object is uploaded; --include-unchanged uploads
everything and --delete-missing removes remote objects that no longer exist
locally. With arguments only the named local paths or path keys are uploaded.`,
	RunE: runUpload,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Serve starts a long-running HTTP server that listens for GitHub push events,
updates the checkout of the configured repository and uploads it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("portalsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "local content directory (overrides content.root_dir)")

	addUploadFlags(uploadCmd)

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func addUploadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&keepAsDraft, "keep-as-draft", false, "save templates as draft without publishing")
	f.StringVar(&layout, "layout", "", "layout for new pages (empty disables the default main_layout)")
	f.BoolVarP(&dryRun, "dry-run", "n", false, "show what would be done without making changes")
	f.BoolVarP(&includeUnchanged, "include-unchanged", "u", false, "upload objects that are not newer locally")
	f.BoolVarP(&deleteMissing, "delete-missing", "d", false, "delete remote objects missing locally")
	f.BoolVarP(&recurse, "recurse", "r", false, "include everything below named directories")
	cmd.MarkFlagsMutuallyExclusive("recurse", "include-unchanged")
	cmd.MarkFlagsMutuallyExclusive("recurse", "delete-missing")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir := rootDir
	if dir == "" {
		dir = cfg.Content.RootDir
	}
	if dir == "" {
		return errors.New("no content directory: set content.root_dir or pass --root")
	}

	remote, err := newRemote(cfg, logger)
	if err != nil {
		return err
	}
	source, err := localfs.NewOSSource(dir)
	if err != nil {
		return err
	}

	engine := sync.NewEngine(remote, source, logger, uploadOptions(cmd, cfg, args))

	if _, err := engine.Run(ctx); err != nil {
		logger.Error("upload failed", "error", err)
		return err
	}
	return nil
}

// uploadOptions merges upload flags over the upload section of cfg. Flags
// win when set explicitly.
func uploadOptions(cmd *cobra.Command, cfg *config.Config, args []string) sync.Options {
	opts := sync.Options{
		Paths:       args,
		Recurse:     recurse,
		KeepAsDraft: cfg.Upload.KeepAsDraft,
		Layout:      cfg.Upload.Layout,
		DryRun:      dryRun,
	}

	// Upload-all defaults would conflict with named paths
	if len(args) == 0 {
		opts.IncludeUnchanged = cfg.Upload.IncludeUnchanged
		opts.DeleteMissing = cfg.Upload.DeleteMissing
	}

	flags := cmd.Flags()
	if flags.Changed("keep-as-draft") {
		opts.KeepAsDraft = keepAsDraft
	}
	if flags.Changed("layout") {
		l := layout
		opts.Layout = &l
	}
	if flags.Changed("include-unchanged") {
		opts.IncludeUnchanged = includeUnchanged
	}
	if flags.Changed("delete-missing") {
		opts.DeleteMissing = deleteMissing
	}
	return opts
}

// serveOptions is the upload-all policy serve mode applies to each checkout.
func serveOptions(cfg *config.Config) sync.Options {
	return sync.Options{
		IncludeUnchanged: cfg.Upload.IncludeUnchanged,
		DeleteMissing:    cfg.Upload.DeleteMissing,
		KeepAsDraft:      cfg.Upload.KeepAsDraft,
		Layout:           cfg.Upload.Layout,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Serve.Enabled {
		return errors.New("serve mode is disabled: set serve.enabled in the config")
	}

	remote, err := newRemote(cfg, logger)
	if err != nil {
		return err
	}

	gitClient := git.NewShellClient(git.Auth{
		SSHKeyFile:     cfg.Auth.SSHKeyFile,
		HTTPSTokenFile: cfg.Auth.HTTPSTokenFile,
	})

	upload := func(ctx context.Context, dir string) error {
		source, err := localfs.NewOSSource(dir)
		if err != nil {
			return err
		}
		_, err = sync.NewEngine(remote, source, logger, serveOptions(cfg)).Run(ctx)
		return err
	}

	server, err := webhook.NewServer(cfg, gitClient, upload, logger)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}
	return server.Start(ctx)
}

func newRemote(cfg *config.Config, logger *slog.Logger) (*threescale.Client, error) {
	token, err := cfg.ReadAccessToken()
	if err != nil {
		return nil, err
	}
	client, err := threescale.New(threescale.Options{
		BaseURL:     cfg.Provider.URL,
		AccessToken: token,
		PerPage:     cfg.Provider.PerPage,
		Concurrency: cfg.Provider.Concurrency,
		Timeout:     cfg.Provider.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create 3scale client: %w", err)
	}
	return client, nil
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	// pathkey reports unknown content types through the default logger
	slog.SetDefault(logger)
	return logger
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"provider", cfg.Provider.URL,
		"root_dir", cfg.Content.RootDir,
		"serve", cfg.Serve.Enabled,
		"state_dir", cfg.Paths.StateDir)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
