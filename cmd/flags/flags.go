// Package flags holds the command line flags shared by the service binaries.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/anyone-dns-service/common"
	"github.com/ruteri/anyone-dns-service/config"
	"github.com/ruteri/anyone-dns-service/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	listenAddr := cCtx.String(ListenAddrFlag.Name)
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// ResolverConfig reads the registry and resolution flags. Inventory and cache
// flags are read when the command defines them.
func ResolverConfig(cCtx *cli.Context) config.Config {
	cfg := config.Default()
	cfg.JSONRPCURL = cCtx.String(RpcAddrFlag.Name)
	cfg.ProxyReaderAddress = cCtx.String(ProxyReaderAddrFlag.Name)
	cfg.BatchSize = cCtx.Int(BatchSizeFlag.Name)
	cfg.BatchDelayMs = cCtx.Int64(BatchDelayMsFlag.Name)
	cfg.CallTimeout = cCtx.Duration(CallTimeoutFlag.Name)
	cfg.DomainTLDs = cCtx.StringSlice(TLDFlag.Name)
	cfg.AddressTLDs = cCtx.StringSlice(HiddenServiceTLDFlag.Name)

	cfg.InventoryBaseURL = cCtx.String(InventoryURLFlag.Name)
	if cCtx.IsSet(CacheTTLMsFlag.Name) {
		cfg.CacheTTLMs = cCtx.Int64(CacheTTLMsFlag.Name)
	}
	return cfg
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	EnvVars: []string{"JSON_RPC_URL"},
	Usage:   "Ethereum JSON-RPC endpoint serving the UNS registry",
}

var ProxyReaderAddrFlag = &cli.StringFlag{
	Name:    "proxy-reader-address",
	EnvVars: []string{"UNS_PROXY_READER_ADDRESS"},
	Usage:   "UNS ProxyReader contract address, 40-char hex string",
}

var InventoryURLFlag = &cli.StringFlag{
	Name:    "inventory-url",
	EnvVars: []string{"ANYONE_API_BASE_URL"},
	Usage:   "Anyone API base URL serving /anyone-domains",
}

var CacheTTLMsFlag = &cli.Int64Flag{
	Name:    "cache-ttl-ms",
	EnvVars: []string{"ANYONE_DOMAINS_CACHE_TTL_MS"},
	Value:   config.DefaultCacheTTLMs,
	Usage:   "milliseconds to wait between domain cache refreshes",
}

var BatchSizeFlag = &cli.IntFlag{
	Name:  "batch-size",
	Value: config.DefaultBatchSize,
	Usage: "number of domains resolved concurrently per batch",
}

var BatchDelayMsFlag = &cli.Int64Flag{
	Name:  "batch-delay-ms",
	Value: config.DefaultBatchDelayMs,
	Usage: "milliseconds to wait between resolution batches",
}

var CallTimeoutFlag = &cli.DurationFlag{
	Name:  "call-timeout",
	Value: config.DefaultCallTimeout,
	Usage: "timeout of a single registry call",
}

var TLDFlag = &cli.StringSliceFlag{
	Name:  "tld",
	Value: cli.NewStringSlice(config.DefaultTLD),
	Usage: "supported domain TLD, repeatable",
}

var HiddenServiceTLDFlag = &cli.StringSliceFlag{
	Name:  "hs-tld",
	Value: cli.NewStringSlice(config.DefaultTLD),
	Usage: "supported hidden service address TLD, repeatable",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var DNSListenAddrFlag = &cli.StringFlag{
	Name:  "dns-listen-addr",
	Value: "",
	Usage: "address to serve DNS on (UDP and TCP), empty disables",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ResolverFlags = []cli.Flag{
	RpcAddrFlag,
	ProxyReaderAddrFlag,
	BatchSizeFlag,
	BatchDelayMsFlag,
	CallTimeoutFlag,
	TLDFlag,
	HiddenServiceTLDFlag,
}

var ServerFlags = []cli.Flag{
	InventoryURLFlag,
	CacheTTLMsFlag,
	ListenAddrFlag,
	DNSListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
