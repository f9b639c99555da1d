package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"reflect"
	"runtime"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/rpc"
	"github.com/kkrt-labs/kakarot-rpc-go/service"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/kkrt-labs/kakarot-rpc-go/validator"
	"github.com/sourcegraph/conc"
)

// Config is the top-level gateway configuration.
type Config struct {
	LogLevel utils.LogLevel `mapstructure:"log-level"`
	Colour   bool           `mapstructure:"colour"`

	HTTP          bool   `mapstructure:"http"`
	HTTPPort      uint16 `mapstructure:"http-port"`
	Websocket     bool   `mapstructure:"ws"`
	WebsocketPort uint16 `mapstructure:"ws-port"`
	Metrics       bool   `mapstructure:"metrics"`
	MetricsPort   uint16 `mapstructure:"metrics-port"`
	Pprof         bool   `mapstructure:"pprof"`
	PprofPort     uint16 `mapstructure:"pprof-port"`

	StarknetRPC     string `mapstructure:"starknet-rpc"`
	KakarotAddress  string `mapstructure:"kakarot-address"`
	FeeTokenAddress string `mapstructure:"fee-token-address"`
	ChainID         uint64 `mapstructure:"chain-id"`
	MaxRetries      int    `mapstructure:"max-retries"`
}

// Gateway serves the Ethereum JSON-RPC API on top of a Kakarot deployment.
type Gateway struct {
	cfg      *Config
	services []service.Service
	log      utils.Logger
	version  string
}

// New wires the StarkNet provider, the Kakarot client and the RPC handler
// into the set of services the gateway runs. Any errors while parsing the
// config or binding listeners are returned.
func New(cfg *Config, version string) (*Gateway, error) {
	log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}

	if cfg.StarknetRPC == "" {
		return nil, errors.New("no StarkNet RPC endpoint configured (--starknet-rpc)")
	}
	coreContract, err := new(felt.Felt).SetString(cfg.KakarotAddress)
	if err != nil {
		return nil, fmt.Errorf("parse kakarot-address: %w", err)
	}
	feeToken, err := new(felt.Felt).SetString(cfg.FeeTokenAddress)
	if err != nil {
		return nil, fmt.Errorf("parse fee-token-address: %w", err)
	}
	if cfg.ChainID == 0 {
		return nil, errors.New("chain-id must be non-zero")
	}

	provider := starknet.NewClient(cfg.StarknetRPC).WithLogger(log)
	if cfg.MaxRetries > 0 {
		provider = provider.WithMaxRetries(cfg.MaxRetries)
	}
	if cfg.Metrics {
		provider = provider.WithListener(makeProviderMetrics())
	}

	client := kakarot.NewClient(provider, coreContract, feeToken, new(big.Int).SetUint64(cfg.ChainID)).WithLogger(log)
	rpcHandler := rpc.New(client, version, log)
	if cfg.Metrics {
		rpcHandler = rpcHandler.WithListener(makeTranslationMetrics())
	}

	// to improve RPC throughput we double GOMAXPROCS
	maxGoroutines := 2 * runtime.GOMAXPROCS(0)
	jsonrpcServer := jsonrpc.NewServer(maxGoroutines, log).WithValidator(validator.Validator())
	if cfg.Metrics {
		jsonrpcServer = jsonrpcServer.WithListener(makeRPCMetrics(version))
	}
	if err = jsonrpcServer.RegisterMethods(rpcHandler.Methods()...); err != nil {
		return nil, err
	}

	services := make([]service.Service, 0)
	if cfg.HTTP {
		listener, err := listen(cfg.HTTPPort)
		if err != nil {
			return nil, err
		}
		services = append(services, makeRPCOverHTTP(listener, jsonrpcServer, log, cfg.Metrics))
	}
	if cfg.Websocket {
		listener, err := listen(cfg.WebsocketPort)
		if err != nil {
			return nil, err
		}
		services = append(services, makeRPCOverWebsocket(listener, jsonrpcServer, log, cfg.Metrics))
	}
	if cfg.Metrics {
		makeGatewayMetrics(version)
		listener, err := listen(cfg.MetricsPort)
		if err != nil {
			return nil, err
		}
		services = append(services, makeMetrics(listener))
	}
	if cfg.Pprof {
		listener, err := listen(cfg.PprofPort)
		if err != nil {
			return nil, err
		}
		services = append(services, makePPROF(listener))
	}

	return &Gateway{
		cfg:      cfg,
		services: services,
		log:      log,
		version:  version,
	}, nil
}

func listen(port uint16) (net.Listener, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return listener, nil
}

// Run starts all services and blocks until the context is cancelled. A
// failing service cancels the others; Run waits for all of them to return.
func (g *Gateway) Run(ctx context.Context) {
	g.log.Infow("Starting Kakarot RPC gateway", "version", g.version)

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	for _, s := range g.services {
		s := s
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				g.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
				cancel()
			}
		})
	}
	defer wg.Wait()

	<-ctx.Done()
	cancel()
	g.log.Infow("Shutting down gateway")
}

func (g *Gateway) Config() Config {
	return *g.cfg
}
