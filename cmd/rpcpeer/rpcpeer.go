package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/NethermindEth/rpcpeer/config"
	"github.com/NethermindEth/rpcpeer/node"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var Version string

const (
	configF = "config"

	defaultConfig = ""

	configFlagUsage = "The yaml configuration file."
)

// Node is what `rpcpeer serve` runs.
type Node interface {
	Run(ctx context.Context)
}

type NewNodeFn func(cfg *config.Config, version string, log utils.SimpleLogger) (Node, error)

// ServingNode is the node started by the last `rpcpeer serve`.
var ServingNode Node

func NewCmd(newNode NewNodeFn) *cobra.Command {
	rpcpeerCmd := &cobra.Command{
		Use:          "rpcpeer",
		Short:        "Bidirectional JSON-RPC 2.0 peer.",
		Version:      Version,
		SilenceUsage: true,
	}

	rpcpeerCmd.PersistentFlags().String(configF, defaultConfig, configFlagUsage)
	config.RegisterFlags(rpcpeerCmd.PersistentFlags())

	rpcpeerCmd.AddCommand(
		newServeCmd(newNode),
		newCallCmd(),
		newMethodsCmd(),
		newConfigCmd(),
	)
	return rpcpeerCmd
}

// loadConfig merges the config file named by --config, the environment and
// every flag visible to cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, err := cmd.Flags().GetString(configF)
	if err != nil {
		return nil, err
	}
	return config.Load(cfgFile, cmd.Flags())
}

func newServeCmd(newNode NewNodeFn) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the built-in methods over the configured transports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := utils.NewZapLogger(&cfg.LogLevel, cfg.Colour)
			if err != nil {
				return err
			}

			ServingNode, err = newNode(cfg, Version, log)
			if err != nil {
				return err
			}

			ServingNode.Run(cmd.Context())
			return nil
		},
	}
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "Lists the built-in methods and their parameters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Method", "Params"})
			for _, method := range node.MethodTable(utils.NewNopZapLogger()) {
				params := make([]string, 0, len(method.Params))
				for _, param := range method.Params {
					name := param.Name
					if param.Optional {
						name += "?"
					}
					if param.Variadic {
						name += "..."
					}
					params = append(params, name)
				}
				table.Append([]string{method.Name, strings.Join(params, ", ")})
			}
			table.Render()
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration as yaml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
