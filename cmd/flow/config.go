package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"
)

// Config holds the CLI settings. Values come from an optional YAML file and
// are overridden by flags given on the command line.
type Config struct {
	Workers   int      `yaml:"workers"`
	MaxRounds int      `yaml:"max_rounds"`
	Verbose   bool     `yaml:"verbose"`
	Journal   string   `yaml:"journal"`
	Show      []string `yaml:"show"`
}

func defaultConfig() Config {
	return Config{Workers: 1}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// configFor loads the --config file and applies the flags that were set.
func configFor(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-rounds") {
		cfg.MaxRounds, _ = flags.GetInt("max-rounds")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("journal") {
		cfg.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("show") {
		cfg.Show, _ = flags.GetStringSlice("show")
	}
	return cfg, nil
}
