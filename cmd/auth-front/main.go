package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modercon/auth-front/internal"
	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/log"
)

var version = "dev"

func main() {
	var (
		configPath   = flag.String("config", "config.json", "path to config file")
		showVersion  = flag.Bool("version", false, "print version and exit")
		validateOnly = flag.Bool("validate", false, "validate config and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("auth-front", version)
		return
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading environment: %v\n", err)
		os.Exit(1)
	}
	log.Setup(env.LogLevel, env.LogFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.LogError("loading config: %v", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("config is valid")
		return
	}

	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.LogInfoWithFields("main", "starting auth-front", map[string]any{
		"version":     version,
		"provider":    cfg.Provider.Name,
		"environment": env.Environment,
	})

	if err := internal.New(cfg).Run(ctx); err != nil {
		log.LogError("server exited: %v", err)
		os.Exit(1)
	}
}
