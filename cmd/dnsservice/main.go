package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/anyone-dns-service/cache"
	"github.com/ruteri/anyone-dns-service/cmd/flags"
	"github.com/ruteri/anyone-dns-service/dnsserver"
	"github.com/ruteri/anyone-dns-service/httpserver"
	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/inventory"
	"github.com/ruteri/anyone-dns-service/registry"
	"github.com/ruteri/anyone-dns-service/resolver"
)

func main() {
	app := &cli.App{
		Name:  "anyone-dns-service",
		Usage: "Resolve Anyone domains to hidden service addresses and serve them over HTTP and DNS",
		Flags: append(append(append([]cli.Flag{}, flags.ResolverFlags...), flags.ServerFlags...), flags.LogFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg := flags.ResolverConfig(cCtx)
			if err := cfg.Validate(); err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}

			// Connect to Ethereum
			logger.Info("Connecting to Ethereum RPC", "address", cfg.JSONRPCURL)
			ethClient, err := ethclient.Dial(cfg.JSONRPCURL)
			if err != nil {
				logger.Error("Failed to dial RPC", "err", err)
				return err
			}
			defer ethClient.Close()

			proxyReader, err := registry.NewProxyReaderClient(ethClient, common.HexToAddress(cfg.ProxyReaderAddress))
			if err != nil {
				logger.Error("Failed to bind ProxyReader", "err", err)
				return err
			}
			logger.Info("Using UNS ProxyReader", "address", proxyReader.Address().String())

			inventoryClient, err := inventory.NewClient(cfg.InventoryBaseURL, &http.Client{Timeout: inventory.DefaultTimeout})
			if err != nil {
				logger.Error("Failed to create inventory client", "err", err)
				return err
			}

			domainTLDs := interfaces.NewTLDSet(cfg.DomainTLDs...)
			domainResolver := resolver.NewResolver(proxyReader, resolver.Config{
				DomainTLDs:  domainTLDs,
				AddressTLDs: interfaces.NewTLDSet(cfg.AddressTLDs...),
				CallTimeout: cfg.CallTimeout,
			}, logger)
			bulkResolver := resolver.NewBulkResolver(domainResolver, clock.New(), logger)

			domainCache := cache.NewDomainCache(inventoryClient, bulkResolver, cache.Config{
				TTL:        cfg.CacheTTL(),
				BatchSize:  cfg.BatchSize,
				BatchDelay: cfg.BatchDelay(),
			}, clock.New(), logger)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger),
				httpserver.NewHandler(domainCache, domainResolver, domainTLDs, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cacheDone := make(chan error, 1)
			go func() {
				cacheDone <- domainCache.Run(ctx)
			}()

			logger.Info("Starting server")
			server.RunInBackground()

			var dnsServer *dnsserver.Server
			if dnsAddr := cCtx.String(flags.DNSListenAddrFlag.Name); dnsAddr != "" {
				dnsServer = dnsserver.New(domainCache, domainTLDs, logger)
				if err := dnsServer.ListenAndServe(dnsAddr); err != nil {
					logger.Error("Failed to start DNS server", "err", err)
					server.Shutdown()
					return fmt.Errorf("dns listen: %w", err)
				}
			}

			logger.Info("Server is running, press Ctrl+C to stop")
			<-ctx.Done()
			logger.Info("Shutdown signal received")

			if dnsServer != nil {
				dnsServer.Shutdown()
			}
			server.Shutdown()
			<-cacheDone
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
