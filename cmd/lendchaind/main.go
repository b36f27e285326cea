package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lendchain/config"
	"lendchain/core"
	"lendchain/crypto"
	"lendchain/storage"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (defaults used when empty)")
	adminAddr := flag.String("admin", "", "bech32 administrator address")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	var admin crypto.Address
	if *adminAddr != "" {
		decoded, err := crypto.DecodeAddress(*adminAddr)
		if err != nil {
			log.Fatalf("invalid admin address: %v", err)
		}
		admin = decoded
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open state database at %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	protocol, err := core.NewProtocol(db, cfg, admin)
	if err != nil {
		log.Fatalf("assemble protocol: %v", err)
	}

	log.Printf("lendchaind ready: data=%s base=%s discount=%dbps collateral_vault=%s auction_vault=%s",
		cfg.DataDir, cfg.BaseToken, cfg.AuctionDiscountBps,
		protocol.Collateral.ModuleAddress(), protocol.Auctions.ModuleAddress())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("shutting down")
}
