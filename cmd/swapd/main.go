// Package main provides swapd, the swap coordination daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klingon-exchange/swapcore/internal/blocktime"
	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/chainwatch"
	"github.com/klingon-exchange/swapcore/internal/config"
	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swapbuilder"
	"github.com/klingon-exchange/swapcore/internal/swapservice"
	"github.com/klingon-exchange/swapcore/internal/walletkeys"
	"github.com/klingon-exchange/swapcore/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

const mnemonicFileName = "wallet.mnemonic"

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.swapd", "Data directory")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		testnet     = flag.Bool("testnet", false, "Run on testnet")
		lnSymbol    = flag.String("ln-symbol", "BTC", "Chain symbol the Lightning leg settles against")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("swapd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	cfg, err := config.LoadDaemonConfig(effectiveDataDir)
	if err != nil {
		log.Fatal("load daemon config", "error", err)
	}
	if *testnet {
		cfg.NetworkType = "testnet"
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log = logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("config loaded", "path", config.DaemonConfigPath(effectiveDataDir))

	network := chain.Mainnet
	if cfg.IsTestnet() {
		network = chain.Testnet
	}

	dataPath := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		log.Fatal("create data dir", "error", err)
	}

	repo, err := repository.Open(repository.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("open repository", "error", err)
	}
	defer repo.Close()
	log.Info("repository opened", "path", dataPath)

	pairsPath := filepath.Join(dataPath, "pairs.toml")
	pairsFile, rateProvider, feeEstimator := loadOrBootstrapPairs(log, pairsPath)

	keys, err := loadOrGenerateWallet(log, dataPath, network)
	if err != nil {
		log.Fatal("load wallet", "error", err)
	}

	chainRegistry := chainwatch.NewDefaultRegistry(cfg.IsTestnet())
	for _, symbol := range []string{"BTC", "LTC"} {
		keys.SetBalanceSource(symbol, chainRegistry.Client(symbol))
	}
	log.Info("chain watch registry initialized", "symbols", []string{"BTC", "LTC"})

	ln := &unconfiguredLightning{chain: chainRegistry.Client(*lnSymbol), log: log.Component("lightning")}

	blockTimes := blocktime.New()

	svc, err := swapservice.New(swapservice.Config{
		Repository:        repo,
		Rates:             rateProvider,
		Fees:              feeEstimator,
		Scripts:           swapbuilder.HTLCScriptFactory{},
		Wallet:            keys,
		WalletKeys:        keys,
		Broadcaster:       chainRegistry.Client("BTC"),
		Invoices:          ln,
		Settler:           ln,
		LnClient:          ln,
		LnSymbol:          *lnSymbol,
		PairsPath:         pairsPath,
		BlockTimes:        blockTimes,
		Network:           network,
		AllowReverseSwaps: cfg.AllowReverseSwaps,
	})
	if err != nil {
		log.Fatal("build swap service", "error", err)
	}
	defer svc.Close()
	log.Info("swap service initialized", "pairs", len(pairsFile.Pairs), "allow_reverse_swaps", cfg.AllowReverseSwaps)

	printBanner(log, cfg, network)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				log.Info("swap status", "swap", ev.SwapID, "kind", ev.Kind, "status", ev.Status)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down...")
	cancel()
	log.Info("goodbye!")
}

// loadOrBootstrapPairs loads the TOML pairs file at path, writing a minimal
// single-pair default if none exists yet.
func loadOrBootstrapPairs(log *logging.Logger, path string) (*config.PairsFile, *rates.Static, *rates.Static) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		pf := &config.PairsFile{Pairs: []config.PairConfig{
			{
				Base: "BTC", Quote: "BTC", Rate: 1, Fee: 0.5,
				TimeoutDelta: config.TimeoutDelta{Reverse: 1440, SwapMinimal: 1440, SwapMaximal: 2880},
			},
		}}
		if err := pf.Save(path); err != nil {
			log.Fatal("write default pairs file", "error", err)
		}
		log.Info("wrote default pairs file", "path", path)
	}

	pf, err := config.LoadPairsFile(path)
	if err != nil {
		log.Fatal("load pairs file", "error", err)
	}

	staticPairs := make(map[string]rates.StaticPairConfig, len(pf.Pairs))
	for _, p := range pf.Pairs {
		fee := p.Fee
		staticPairs[p.Symbol()] = rates.StaticPairConfig{
			Rate:            p.Rate,
			BaseFee:         0,
			PercentageFee:   func(amount uint64) uint64 { return uint64(float64(amount) * fee / 100) },
			SubmarineLimits: rates.Limits{Minimum: 10_000, Maximum: 25_000_000},
			ReverseLimits:   rates.Limits{Minimum: 10_000, Maximum: 25_000_000},
			ChainLimits:     rates.Limits{Minimum: 10_000, Maximum: 25_000_000},
			ZeroConfThresholds: map[string]uint64{
				p.Base:  1_000_000,
				p.Quote: 1_000_000,
			},
		}
	}
	provider := rates.NewStatic(staticPairs)
	return pf, provider, provider
}

// loadOrGenerateWallet reads the mnemonic stored at dataDir/wallet.mnemonic,
// generating and persisting a new one on first run. The mnemonic is stored
// in plaintext — a production deployment should encrypt it at rest the way
// a real wallet custody layer would; this daemon's own scope stops at key
// derivation.
func loadOrGenerateWallet(log *logging.Logger, dataDir string, network chain.Network) (*walletkeys.KeyStore, error) {
	path := filepath.Join(dataDir, mnemonicFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read wallet mnemonic: %w", err)
		}
		mnemonic, genErr := walletkeys.GenerateMnemonic()
		if genErr != nil {
			return nil, genErr
		}
		if writeErr := os.WriteFile(path, []byte(mnemonic), 0600); writeErr != nil {
			return nil, fmt.Errorf("write wallet mnemonic: %w", writeErr)
		}
		log.Warn("generated new wallet mnemonic", "path", path)
		return walletkeys.NewFromMnemonic(mnemonic, "", network)
	}

	return walletkeys.NewFromMnemonic(string(data), "", network)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func printBanner(log *logging.Logger, cfg *config.DaemonConfig, network chain.Network) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  swapd (%s)", network)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Data dir: %s", expandPath(cfg.DataDir))
	log.Infof("  Allow reverse swaps: %v", cfg.AllowReverseSwaps)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
