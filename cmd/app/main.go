package main

import (
	"flag"
	"log"
	"os"

	"CrudeDesk/internal/di"
	"CrudeDesk/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("starting env=%s cutoff=%s tz=%s", cfg.Environment, cfg.TradingDay.Cutoff, cfg.TradingDay.Timezone)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
