package main

import (
	"context"
	"fmt"

	"github.com/kkrt-labs/kakarot-rpc-go/node"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type gateway interface {
	Run(ctx context.Context)
}

type newGatewayFn func(cfg *node.Config) (gateway, error)

const greeting = `
  _  __     _                   _     ____  ____   ____
 | |/ /__ _| | ____ _ _ __ ___ | |_  |  _ \|  _ \ / ___|
 | ' // _' | |/ / _' | '__/ _ \| __| | |_) | |_) | |
 | . \ (_| |   < (_| | | | (_) | |_  |  _ <|  __/| |___
 |_|\_\__,_|_|\_\__,_|_|  \___/ \__| |_| \_\_|    \____|

Ethereum JSON-RPC gateway for the Kakarot zkEVM.

`

const (
	configF          = "config"
	logLevelF        = "log-level"
	colourF          = "colour"
	httpF            = "http"
	httpPortF        = "http-port"
	wsF              = "ws"
	wsPortF          = "ws-port"
	metricsF         = "metrics"
	metricsPortF     = "metrics-port"
	pprofF           = "pprof"
	pprofPortF       = "pprof-port"
	starknetRPCF     = "starknet-rpc"
	kakarotAddressF  = "kakarot-address"
	feeTokenAddressF = "fee-token-address"
	chainIDF         = "chain-id"
	maxRetriesF      = "max-retries"

	defaultConfig      = ""
	defaultHTTP        = true
	defaultHTTPPort    = uint16(3030)
	defaultWS          = false
	defaultWSPort      = uint16(3031)
	defaultMetrics     = false
	defaultMetricsPort = uint16(9090)
	defaultPprof       = false
	defaultPprofPort   = uint16(9080)
	defaultStarknetRPC = ""
	defaultFeeToken    = "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
	defaultChainID     = uint64(1263227476)
	defaultMaxRetries  = 3

	configFlagUsage      = "The yaml configuration file."
	logLevelFlagUsage    = "Options: debug, info, warn, error."
	colourUsage          = "Use colour in log outputs."
	httpUsage            = "Enables the JSON-RPC server over HTTP."
	httpPortUsage        = "The port on which the HTTP RPC server will listen for requests."
	wsUsage              = "Enables the JSON-RPC server over WebSocket."
	wsPortUsage          = "The port on which the WebSocket RPC server will listen for requests."
	metricsUsage         = "Enables the Prometheus metrics endpoint."
	metricsPortUsage     = "The port on which the metrics endpoint will listen."
	pprofUsage           = "Enables the pprof endpoint."
	pprofPortUsage       = "The port on which the pprof endpoint will listen."
	starknetRPCUsage     = "The StarkNet JSON-RPC endpoint the gateway executes against."
	kakarotAddressUsage  = "The address of the Kakarot core contract."
	feeTokenAddressUsage = "The address of the StarkNet fee token contract."
	chainIDUsage         = "The Ethereum chain id the gateway reports and validates signatures against."
	maxRetriesUsage      = "Maximum retries for transient StarkNet provider failures."
)

// NewCmd builds the root command. The newGatewayFn indirection lets tests
// intercept the parsed configuration.
func NewCmd(newGateway newGatewayFn) *cobra.Command {
	gatewayCmd := &cobra.Command{
		Use:     "kakarot-rpc [flags]",
		Short:   "Ethereum RPC gateway for Kakarot, the zkEVM written in Cairo.",
		Version: Version,
	}

	var cfgFile string
	defaultLogLevel := utils.INFO

	gatewayCmd.Flags().StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	gatewayCmd.Flags().Var(&defaultLogLevel, logLevelF, logLevelFlagUsage)
	gatewayCmd.Flags().Bool(colourF, true, colourUsage)
	gatewayCmd.Flags().Bool(httpF, defaultHTTP, httpUsage)
	gatewayCmd.Flags().Uint16(httpPortF, defaultHTTPPort, httpPortUsage)
	gatewayCmd.Flags().Bool(wsF, defaultWS, wsUsage)
	gatewayCmd.Flags().Uint16(wsPortF, defaultWSPort, wsPortUsage)
	gatewayCmd.Flags().Bool(metricsF, defaultMetrics, metricsUsage)
	gatewayCmd.Flags().Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)
	gatewayCmd.Flags().Bool(pprofF, defaultPprof, pprofUsage)
	gatewayCmd.Flags().Uint16(pprofPortF, defaultPprofPort, pprofPortUsage)
	gatewayCmd.Flags().String(starknetRPCF, defaultStarknetRPC, starknetRPCUsage)
	gatewayCmd.Flags().String(kakarotAddressF, "", kakarotAddressUsage)
	gatewayCmd.Flags().String(feeTokenAddressF, defaultFeeToken, feeTokenAddressUsage)
	gatewayCmd.Flags().Uint64(chainIDF, defaultChainID, chainIDUsage)
	gatewayCmd.Flags().Int(maxRetriesF, defaultMaxRetries, maxRetriesUsage)

	gatewayCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v := viper.New()
		if cfgFile != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}

		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		cfg := new(node.Config)
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		))); err != nil {
			return err
		}

		if _, err := fmt.Fprint(cmd.OutOrStdout(), greeting); err != nil {
			return err
		}

		g, err := newGateway(cfg)
		if err != nil {
			return err
		}

		g.Run(cmd.Context())
		return nil
	}

	return gatewayCmd
}
