// Package main provides the entry point for the simnode simulator.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/stable-net/simnode-go/pkg/config"
	"github.com/stable-net/simnode-go/pkg/evm"
	"github.com/stable-net/simnode-go/pkg/genesis"
	"github.com/stable-net/simnode-go/pkg/node"
	"github.com/stable-net/simnode-go/pkg/rpc"
)

const (
	configOption    = "config"
	hostOption      = "host"
	portOption      = "port"
	chainIDOption   = "chain-id"
	accountsOption  = "accounts"
	mnemonicOption  = "mnemonic"
	blockTimeOption = "block-time"
	logLevelOption  = "log-level"
	versionOption   = "version"
)

const shutdownTimeout = 5 * time.Second

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.StringP(configOption, "c", "", "Path to a JSON config file")
	host := flag.String(hostOption, "", "Host interface to listen on")
	port := flag.IntP(portOption, "p", 0, "Port to listen on")
	chainID := flag.Uint64(chainIDOption, 0, "Chain ID of the simulated network")
	accounts := flag.IntP(accountsOption, "a", 0, "Number of dev accounts to derive")
	mnemonic := flag.StringP(mnemonicOption, "m", "", "BIP-39 mnemonic for dev account derivation")
	blockTime := flag.DurationP(blockTimeOption, "b", 0, "Interval mining period (0 disables interval mining)")
	logLevel := flag.StringP(logLevelOption, "v", "", "The log filtering level (debug, info, warn, error)")
	version := flag.Bool(versionOption, false, "Print version and exit")

	flag.Parse()

	if *version {
		fmt.Printf("simnode version %s\n", Version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "simnode: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override config file values
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *chainID != 0 {
		cfg.ChainID = *chainID
	}
	if *accounts != 0 {
		cfg.AccountCount = *accounts
	}
	if *mnemonic != "" {
		cfg.Mnemonic = *mnemonic
	}
	if *blockTime != 0 {
		cfg.BlockTime = *blockTime
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "simnode: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()

	if cfg.GenesisTimestamp == 0 {
		cfg.GenesisTimestamp = uint64(time.Now().Unix())
	}

	genesisBlock, devAccounts, err := genesis.CreateGenesisBlock(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create genesis block")
	}

	n, err := node.New(new(big.Int).SetUint64(cfg.ChainID), genesisBlock, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize node")
	}
	n.Miner().SetGasLimit(cfg.GasLimit)
	n.Chain().SetCoinbase(devAccounts[0].Address)

	if cfg.IsIntervalMining() {
		n.Miner().SetInterval(cfg.BlockTime)
		if err := n.Miner().Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start interval mining")
		}
		log.Info().Dur("interval", cfg.BlockTime).Msg("interval mining enabled")
	}

	log.Info().
		Uint64("chainId", cfg.ChainID).
		Uint64("genesisTimestamp", cfg.GenesisTimestamp).
		Msg("chain initialized")
	for i, acc := range devAccounts {
		log.Info().Int("index", i).Str("address", acc.Address.Hex()).Msg("dev account")
	}

	server := rpc.NewServer(evm.NewController(n), log)
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.AllowOrigin},
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	httpServer := &http.Server{
		Addr:    cfg.ServerAddr(),
		Handler: corsMiddleware.Handler(server),
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr()).Msg("RPC server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("RPC server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	if cfg.IsIntervalMining() {
		n.Miner().Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
