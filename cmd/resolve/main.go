package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/anyone-dns-service/cmd/flags"
	"github.com/ruteri/anyone-dns-service/cryptoutils"
	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/registry"
	"github.com/ruteri/anyone-dns-service/resolver"
)

const usage string = `Operator tooling for Anyone domains.

   resolve  looks domains up in the UNS registry and prints hosts-style lines
   namehash prints the registry node and token id of a domain
   validate checks the checksum of a hidden service address`

func main() {
	app := &cli.App{
		Name:  "resolve",
		Usage: usage,
		Flags: flags.LogFlags,
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "resolve domains against the registry",
				ArgsUsage: "<domain>...",
				Flags:     flags.ResolverFlags,
				Action:    resolveAction,
			},
			{
				Name:      "namehash",
				Usage:     "print the namehash and token id of a domain",
				ArgsUsage: "<domain>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected exactly one domain")
					}
					domain := cCtx.Args().First()
					fmt.Printf("namehash: %s\ntoken id: %s\n", cryptoutils.NameHash(domain).Hex(), cryptoutils.TokenID(domain).String())
					return nil
				},
			},
			{
				Name:      "validate",
				Usage:     "validate a hidden service address",
				ArgsUsage: "<address>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected exactly one address")
					}
					addr, err := cryptoutils.ParseHiddenServiceAddress(cCtx.Args().First())
					if err != nil {
						return fmt.Errorf("invalid hidden service address: %w", err)
					}
					fmt.Printf("valid: pubkey %x version %d tld .%s\n", addr.Pubkey, addr.Version, addr.TLD)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func resolveAction(cCtx *cli.Context) error {
	if cCtx.NArg() == 0 {
		return errors.New("expected at least one domain")
	}

	logger := flags.SetupLogger(cCtx)
	cfg := flags.ResolverConfig(cCtx)
	if cfg.JSONRPCURL == "" || cfg.ProxyReaderAddress == "" {
		return errors.New("--rpc-addr and --proxy-reader-address are required")
	}

	ethClient, err := ethclient.Dial(cfg.JSONRPCURL)
	if err != nil {
		return fmt.Errorf("dial RPC: %w", err)
	}
	defer ethClient.Close()

	proxyReader, err := registry.NewProxyReaderClient(ethClient, common.HexToAddress(cfg.ProxyReaderAddress))
	if err != nil {
		return err
	}

	domainResolver := resolver.NewResolver(proxyReader, resolver.Config{
		DomainTLDs:  interfaces.NewTLDSet(cfg.DomainTLDs...),
		AddressTLDs: interfaces.NewTLDSet(cfg.AddressTLDs...),
		CallTimeout: cfg.CallTimeout,
	}, logger)
	bulk := resolver.NewBulkResolver(domainResolver, clock.New(), logger)

	failed := 0
	for _, res := range bulk.ResolveAll(cCtx.Context, cCtx.Args().Slice(), cfg.BatchSize, cfg.BatchDelay()) {
		if res.OK() {
			fmt.Printf("%s %s\n", res.Domain, res.Address)
			continue
		}
		failed++
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", res.Domain, interfaces.KindName(res.Kind()), res.Err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d domains failed to resolve", failed, cCtx.NArg())
	}
	return nil
}
