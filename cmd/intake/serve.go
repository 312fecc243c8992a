package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"intake/pkg/auth"
	"intake/pkg/extractor"
	"intake/pkg/server"
	"intake/pkg/version"
)

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath, secretsDir := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath, *secretsDir, os.Stdin, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer a.Close()

	issuer, err := auth.NewIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid auth configuration: %v\n", err)
		return 1
	}

	srv, err := server.New(server.Deps{
		Config:     cfg.Server,
		Chat:       a.engine,
		Store:      a.store,
		Tickets:    a.tickets,
		Issuer:     issuer,
		Admin:      auth.NewAdminChecker(cfg.Auth.AdminPassword, cfg.Auth.AdminKey),
		Summarizer: extractor.NewGuard(a.capability, a.metrics),
		Metrics:    a.metrics,
		Gatherer:   a.registry,
		Version:    version.Version,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create server: %v\n", err)
		return 1
	}

	a.logger.Info("%s %s starting (ai=%s, store=%s, sessions=%s)",
		cfg.AppName, version.Version, cfg.AI.Provider, cfg.Store.Backend, cfg.Session.Backend)
	if err := srv.ListenAndServe(ctx); err != nil {
		a.logger.Error("Server stopped: %v", err)
		return 1
	}
	a.logger.Info("Shutdown complete")
	return 0
}
