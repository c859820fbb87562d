// Package cmd implements the snowball-gateway command line.
package cmd

import (
	"github.com/Sternrassler/snowball-gateway/internal/config"
	"github.com/Sternrassler/snowball-gateway/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	verbose bool

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snowball-gateway",
	Short: "Paced, credential-rotating gateway to the Xueqiu (Snowball) data APIs",
	Long: `snowball-gateway calls the Xueqiu and Danjuan data APIs on behalf of its
callers. Every upstream call is paced by a shared adaptive limiter, signed
with a rotating session token, retried once on failure and normalized into
compact tables.

Session tokens are read from XUEQIU_TOKEN (comma separated) and
XUEQIU_TOKEN_1 ... XUEQIU_TOKEN_9, or from a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	rootCmd.AddCommand(serveCmd, callCmd, opsCmd, cacheCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	opts := config.Options{ConfigFile: cfgFile}
	if envFile != "" {
		opts.EnvFiles = []string{envFile}
	}

	loaded, err := config.Load(opts)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Log.Level = logging.LevelDebug
	}
	loaded.Log.Output = cmd.ErrOrStderr()

	logging.Setup(loaded.Log)
	cfg = loaded
	return nil
}
