package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/babelcloud/screenrec/config"
	"github.com/babelcloud/screenrec/internal/util"
	"github.com/babelcloud/screenrec/internal/version"
)

var (
	cfgFile string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "screenrec",
		Short: "Screen and microphone recorder",
		Long: `screenrec captures a region of the screen and, optionally, the default
microphone, and multiplexes both into a single MP4, WebM or MKV file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			return cmd.Help()
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, $XDG_CONFIG_HOME/screenrec/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().Bool("version", false, "Print version information and exit")

	rootCmd.AddCommand(NewRecordCommand())
	rootCmd.AddCommand(NewDemoCommand())
	rootCmd.AddCommand(NewDevicesCommand())
	rootCmd.AddCommand(NewVersionCommand())
}

func setupLogging() error {
	if cfgFile != "" {
		if err := config.LoadFile(cfgFile); err != nil {
			return err
		}
	}

	level := config.GetLogLevel()
	if verbose || util.IsVerbose() {
		level = "debug"
	}

	opts := util.LogOptions{Level: level, Format: config.GetLogFormat()}
	if path := config.GetLogFile(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		opts.Output = f
	}
	if err := util.ConfigureLogger(opts); err != nil {
		return err
	}

	if used := config.ConfigFileUsed(); used != "" {
		util.GetLogger().Debug("Loaded config file", "path", used)
	}
	return nil
}
