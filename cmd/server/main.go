package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"clawworld.ai/internal/config"
	"clawworld.ai/internal/economy"
	"clawworld.ai/internal/ledger"
	persistlog "clawworld.ai/internal/persistence/log"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/transport/feed"
	"clawworld.ai/internal/transport/httpapi"
	"clawworld.ai/internal/verify"
	"clawworld.ai/internal/wallet"
	"clawworld.ai/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/config.yaml", "config path")
		dataDir    = flag.String("data", "./data", "runtime data directory")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("config not found (%s); using defaults", *configPath)
			cfg = config.Defaults()
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	st, err := store.OpenSQLite(filepath.Join(*dataDir, "world.db"))
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	gateway, err := ledger.NewClient(ledger.ClientConfig{
		Endpoint:       cfg.Ledger.RPCURL,
		Mint:           cfg.Ledger.TokenMint,
		Logger:         logger,
		ConfirmTimeout: time.Duration(cfg.Ledger.ConfirmTimeoutS) * time.Second,
	})
	if err != nil {
		logger.Fatalf("ledger client: %v", err)
	}

	hotWallet, err := loadHotWallet()
	if err != nil {
		logger.Fatalf("hot wallet: %v", err)
	}
	if hotWallet.IsZero() {
		logger.Printf("CW_HOT_WALLET_KEY not set; registrations will go unfunded")
	}

	sealer, err := loadSealer(logger)
	if err != nil {
		logger.Fatalf("wallet sealer: %v", err)
	}

	tiers := make([]economy.Tier, 0, len(cfg.Economy.Allocations))
	for _, a := range cfg.Economy.Allocations {
		tiers = append(tiers, economy.Tier{
			MaxBots: a.MaxBots,
			Amount:  a.Tokens * economy.UnitsPerToken,
			Name:    a.Name,
		})
	}
	policy, err := economy.NewPolicy(tiers)
	if err != nil {
		logger.Fatalf("allocation policy: %v", err)
	}

	bank := verify.NewBank(verify.BankConfig{
		TTL: time.Duration(cfg.Verify.ChallengeTTLS) * time.Second,
	})

	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()

	hub := feed.NewHub(logger)

	svc, err := world.New(world.Config{
		Store:            st,
		Ledger:           gateway,
		Bank:             bank,
		Policy:           policy,
		Sealer:           sealer,
		Audit:            auditLog,
		Events:           hub,
		Logger:           logger,
		HotWallet:        hotWallet,
		TreasuryAddress:  cfg.Ledger.TreasuryAddress,
		FeeBps:           cfg.Economy.FeeBps,
		MinNativeForFees: cfg.Ledger.MinNativeForFees,
		Width:            cfg.World.Width,
		Height:           cfg.World.Height,
		SpawnX:           cfg.World.SpawnX,
		SpawnY:           cfg.World.SpawnY,
		SpawnJitter:      cfg.World.SpawnJitter,
	})
	if err != nil {
		logger.Fatalf("world service: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	httpapi.NewServer(svc, logger).Register(mux)
	mux.HandleFunc("/v1/feed", hub.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		agents, err := st.CountBots(r.Context())
		if err != nil {
			agents = -1
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP clawworld_agents Registered agent count.\n")
		fmt.Fprintf(rw, "# TYPE clawworld_agents gauge\n")
		fmt.Fprintf(rw, "clawworld_agents %d\n", agents)

		fmt.Fprintf(rw, "# HELP clawworld_pending_challenges Unexpired unanswered challenges.\n")
		fmt.Fprintf(rw, "# TYPE clawworld_pending_challenges gauge\n")
		fmt.Fprintf(rw, "clawworld_pending_challenges %d\n", svc.Bank().Pending())

		fmt.Fprintf(rw, "# HELP clawworld_feed_subscribers Connected feed websockets.\n")
		fmt.Fprintf(rw, "# TYPE clawworld_feed_subscribers gauge\n")
		fmt.Fprintf(rw, "clawworld_feed_subscribers %d\n", hub.Subscribers())
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// loadHotWallet reads the distribution keypair from CW_HOT_WALLET_KEY
// (base58-encoded 64-byte secret). Unset means funding is disabled.
func loadHotWallet() (wallet.Keypair, error) {
	raw := strings.TrimSpace(os.Getenv("CW_HOT_WALLET_KEY"))
	if raw == "" {
		return wallet.Keypair{}, nil
	}
	return wallet.FromBase58Secret(raw)
}

// loadSealer builds the secret sealer from CW_SEAL_KEY (hex, 32
// bytes). Without a key the legacy obfuscating codec is used, which
// is acceptable only for development.
func loadSealer(logger *log.Logger) (wallet.Sealer, error) {
	raw := strings.TrimSpace(os.Getenv("CW_SEAL_KEY"))
	if raw == "" {
		logger.Printf("CW_SEAL_KEY not set; wallet secrets stored with legacy encoding")
		return wallet.LegacyCodec{}, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("CW_SEAL_KEY: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("CW_SEAL_KEY: %d bytes, want %d", len(key), chacha20poly1305.KeySize)
	}
	sealer, err := wallet.NewAEADSealer(key)
	if err != nil {
		return nil, err
	}
	return sealer, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
