package main

import (
	"fmt"
	"runtime"

	"github.com/chain5j/chain5j-dkls/config"
	"github.com/chain5j/chain5j-dkls/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set through ldflags at build time.
var Version = "dev"

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "dklsctl",
	Short: "Threshold ECDSA key generation and signing",
	Long: `dklsctl runs DKLs23 threshold ECDSA over secp256k1 between local parties.

Use 'dklsctl keygen' to generate a t-of-n key and write one party file per share.
Use 'dklsctl sign' to sign a message with any t party files.
Use 'dklsctl derive' to derive a BIP32 child of a party file.
Use 'dklsctl verify' to check a signature.
Use 'dklsctl rekey' to split an existing private key into party files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}

		c, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if verbose {
			c.Log.Level = "debug"
		}

		log, err := logging.New(c.Log)
		if err != nil {
			return err
		}
		logging.Install(log)

		cfg, logger = c, log
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dklsctl version %s\n", Version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.Uint8P("threshold", "t", 2, "signing threshold t")
	flags.Uint8P("share-count", "n", 2, "number of shares n")
	flags.Bool("normalize", true, "produce low-s signatures")
	flags.Duration("phase-timeout", 0, "wait limit per protocol phase (default from config)")
	flags.StringP("output-dir", "o", ".", "directory for party files")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	bind := map[string]string{
		"threshold":     "threshold",
		"share_count":   "share-count",
		"normalize":     "normalize",
		"phase_timeout": "phase-timeout",
		"output_dir":    "output-dir",
		"log.level":     "log-level",
		"log.format":    "log-format",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(signTxCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(configCmd)
}
