package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chain5j/chain5j-dkls/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configOutput string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Generate and inspect dklsctl configuration files.

Flags override file values, and DKLS_* environment variables override the file,
e.g. DKLS_THRESHOLD=3.

Examples:
  dklsctl config init --file dkls.yaml
  dklsctl --config dkls.yaml config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&configOutput, "file", "dkls.yaml", "output path")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Clean(configOutput)
	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.Errorf("%s exists, use --force to overwrite", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}
	if err := os.WriteFile(path, []byte(config.Sample), 0o600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
