package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/intentrun/cmd/intentrun/config"
)

const defaultEnvFile = ".env"

var rootCmd = &cobra.Command{
	Use:           "intentrun",
	Short:         "Replay sample intents against a classification API and report the results",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(viper.GetString("env_file"))
	},
	RunE: runRun,
}

// loadEnvFile loads a dotenv file. A missing default file is fine.
func loadEnvFile(file string) error {
	if file == "" {
		file = defaultEnvFile
	}
	if err := godotenv.Load(file); err != nil {
		if file == defaultEnvFile && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file '%s': %w", file, err)
	}
	return nil
}

// loadConfig resolves flags, env and the config file, then configures logging.
func loadConfig() (*config.ConfigDoc, error) {
	doc, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, err
	}
	return doc, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	v := viper.GetViper()
	config.Init(v)
	v.SetDefault("env_file", "")

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to a config yaml (default ./intentrun.yaml when present)")
	pf.String("env-file", "", "dotenv file to load (default .env when present)")
	pf.String("log-level", v.GetString("logging.level"), "log level: error, warn, info, debug")
	pf.String("log-format", v.GetString("logging.format"), "log format: text, json, color")
	pf.String("base-url", v.GetString("api.base_url"), "base URL of the classification API")
	pf.String("csv", v.GetString("run.csv_file"), "semicolon-delimited intents file")
	pf.Duration("delay", v.GetDuration("run.delay"), "pause between requests (0 = none)")
	pf.Duration("timeout", v.GetDuration("run.timeout"), "per-request timeout")
	pf.Duration("health-timeout", v.GetDuration("run.health_timeout"), "health probe timeout")
	pf.Int("limit", 0, "replay only the first N intents (0 = all)")
	pf.String("report-dir", v.GetString("report.dir"), "directory for the JSON report")
	pf.String("store", "", "save run history: sqlite or postgresql (empty = disabled)")
	pf.String("store-path", v.GetString("store.sqlite.path"), "sqlite history database file")
	pf.String("store-dsn", "", "postgresql history connection string")
	pf.Bool("insecure", false, "skip TLS certificate verification")

	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("env_file", pf.Lookup("env-file"))
	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = v.BindPFlag("api.base_url", pf.Lookup("base-url"))
	_ = v.BindPFlag("run.csv_file", pf.Lookup("csv"))
	_ = v.BindPFlag("run.delay", pf.Lookup("delay"))
	_ = v.BindPFlag("run.timeout", pf.Lookup("timeout"))
	_ = v.BindPFlag("run.health_timeout", pf.Lookup("health-timeout"))
	_ = v.BindPFlag("run.limit", pf.Lookup("limit"))
	_ = v.BindPFlag("report.dir", pf.Lookup("report-dir"))
	_ = v.BindPFlag("store.type", pf.Lookup("store"))
	_ = v.BindPFlag("store.sqlite.path", pf.Lookup("store-path"))
	_ = v.BindPFlag("store.postgres.dsn", pf.Lookup("store-dsn"))
	_ = v.BindPFlag("client.insecure", pf.Lookup("insecure"))

	usageCmd.Flags().String("url", v.GetString("usage.url"), "key information endpoint")
	usageCmd.Flags().String("key-env", v.GetString("usage.key_env"), "environment variable holding the API key")
	_ = v.BindPFlag("usage.url", usageCmd.Flags().Lookup("url"))
	_ = v.BindPFlag("usage.key_env", usageCmd.Flags().Lookup("key-env"))

	serveMockCmd.Flags().String("addr", v.GetString("mock.addr"), "listen address")
	serveMockCmd.Flags().Duration("latency", 0, "artificial delay before each reply")
	_ = v.BindPFlag("mock.addr", serveMockCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("mock.latency", serveMockCmd.Flags().Lookup("latency"))

	historyCmd.Flags().IntVar(&historyRuns, "runs", 0, "number of runs to list (default 20)")
	historyCmd.Flags().StringVar(&historyRunID, "run-id", "", "show the outcomes of one run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveMockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
