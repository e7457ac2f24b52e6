package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vulpemventures/go-polyderive/cachestore"
	"github.com/vulpemventures/go-polyderive/polyderive"
)

// globalFlags are shared by every command.
type globalFlags struct {
	ConfigPath string
	CacheDir   string
	Dev        bool
}

// env is what PersistentPreRunE prepares for the commands.
type env struct {
	flags  globalFlags
	config polyderive.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "polyderive",
		Short:         "Derive and recover wallet factor instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&e.flags.ConfigPath, "config", "", "yaml configuration file")
	root.PersistentFlags().StringVar(&e.flags.CacheDir, "cache-dir", "", "directory of the persisted instance cache (in memory when empty)")
	root.PersistentFlags().BoolVar(&e.flags.Dev, "dev", false, "human readable debug logging")

	root.AddCommand(newOARSCmd(e))
	root.AddCommand(newCacheCmd(e))
	root.AddCommand(newMnemonicCmd())
	return root
}

func (e *env) setup() error {
	var (
		logger *zap.Logger
		err    error
	)
	if e.flags.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	e.logger = logger

	e.config = polyderive.DefaultConfig()
	if e.flags.ConfigPath != "" {
		cfg, err := polyderive.LoadConfig(e.flags.ConfigPath)
		if err != nil {
			return err
		}
		e.config = cfg
	}
	return nil
}

func (e *env) openStore() (*cachestore.Store, error) {
	return cachestore.Open(cachestore.Options{
		Dir:      e.flags.CacheDir,
		InMemory: e.flags.CacheDir == "",
		Logger:   e.logger.Named("cachestore"),
	})
}
