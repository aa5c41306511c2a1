package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-scan-sorter/internal/config"
	"go-scan-sorter/internal/container"
	"go-scan-sorter/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
	v       = config.New()
	rootCmd = &cobra.Command{
		Use:   "sorter",
		Short: "Classify scanned images by user scripts and read their regions",
		Long: `sorter copies scans into a working directory, sorts each image into a
category by running the category's judge script, reads the annotated
regions of every sorted image with OCR and writes a grouped report.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("registry", "", "category registry (.yaml, or .db/.sqlite for SQLite)")
	rootCmd.PersistentFlags().String("image-dir", "", "working image directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	// Bind flags to viper
	_ = v.BindPFlag("registry_path", rootCmd.PersistentFlags().Lookup("registry"))
	_ = v.BindPFlag("image_dir", rootCmd.PersistentFlags().Lookup("image-dir"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(basicTypesCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel() // Always cleanup

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig keeps stdout for results and progress bars.
func initConfig(_ *cobra.Command, _ []string) error {
	logger.SetOutput(os.Stderr)
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}

// openContainer loads the configuration and wires the application.
func openContainer(opts ...container.Option) (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return container.NewContainer(cfg, opts...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sorter %s\n", version)
		},
	}
}
