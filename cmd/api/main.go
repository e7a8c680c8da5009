package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/emilythestrangee/filblog/backend/internal/chain"
	"github.com/emilythestrangee/filblog/backend/internal/config"
	"github.com/emilythestrangee/filblog/backend/internal/database"
	"github.com/emilythestrangee/filblog/backend/internal/server"
	"github.com/emilythestrangee/filblog/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	db, err := database.New(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if cfg.IPFS.APIKey == "" {
		log.Println("⚠️ LIGHTHOUSE_API_KEY is not set, uploads will fail")
	}
	store := storage.NewClient(cfg.IPFS.APIKey,
		storage.WithNodeURL(cfg.IPFS.NodeURL),
		storage.WithGatewayURL(cfg.IPFS.GatewayURL),
		storage.WithLogger(logger),
	)

	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		log.Fatalf("❌ invalid BLOG_CONTRACT_ADDRESS %q", cfg.Chain.ContractAddress)
	}
	opts := []chain.Option{
		chain.WithPollInterval(cfg.Chain.PollInterval),
		chain.WithLogger(logger),
		chain.WithDefaultTracer(),
		chain.WithDefaultMeter(),
	}
	if cfg.Chain.PrivateKey != "" {
		wallet, err := chain.NewKeyWallet(cfg.Chain.PrivateKey)
		if err != nil {
			log.Fatalf("❌ invalid CHAIN_PRIVATE_KEY: %v", err)
		}
		log.Printf("🔐 Signing contract writes as %s", wallet.Address().Hex())
		opts = append(opts, chain.WithWallet(wallet))
	} else {
		log.Println("⚠️ CHAIN_PRIVATE_KEY is not set, contract writes are disabled")
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	contract, err := chain.Dial(dialCtx, cfg.Chain.RPCURL,
		common.HexToAddress(cfg.Chain.ContractAddress), cfg.Chain.ChainID, opts...)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to chain: %v", err)
	}

	srv := server.NewServer(cfg, db, store, contract)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Forced shutdown: %v", err)
	}
	log.Println("👋 Server stopped")
}
