// File: cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stormkv/stormkv/internal/clock"
	"github.com/stormkv/stormkv/internal/config"
	"github.com/stormkv/stormkv/internal/dispatch"
	"github.com/stormkv/stormkv/internal/engine"
	"github.com/stormkv/stormkv/internal/metrics"
	"github.com/stormkv/stormkv/internal/server"
)

const (
	Version     = "1.0.0"
	ServiceName = "stormkv"
)

var rootCmd = &cobra.Command{
	Use:     "stormkv-server",
	Short:   "Start the stormkv server",
	Long:    "Start the stormkv TCP server. Configuration can be set via flags, environment variables (STORMKV_<FLAG>) or a .env file.",
	PreRunE: bindFlags,
	RunE:    run,
}

func init() {
	def := config.Defaults()
	rootCmd.Flags().String("addr", def.Addr, "TCP listen address")
	rootCmd.Flags().Int64("conn-timeout-ms", def.ConnTimeoutMS, "idle connection timeout, in milliseconds")
	rootCmd.Flags().String("http-addr", def.HTTPAddr, "debug/metrics HTTP address; empty disables it")
	rootCmd.Flags().Int("max-conns", def.MaxConns, "maximum concurrent connections; 0 means unlimited")
	rootCmd.Flags().Int("gomaxprocs", def.GOMAXPROCS, "override GOMAXPROCS; 0 leaves the runtime default")
	rootCmd.Flags().Int("gogc", def.GOGC, "override GOGC; -1 disables the garbage collector")
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func main() {
	cobra.OnInitialize(initConfig)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("stormkv: %v", err)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func run(_ *cobra.Command, _ []string) error {
	cfg := config.FromViper(viper.GetViper())
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("stormkv: invalid configuration: %v", err)
	}

	applyRuntimeTuning(cfg)
	printBanner(cfg)

	store := engine.New()
	clk := clock.System{}
	metricsReg := metrics.New()
	d := dispatch.New(store, clk)
	d.SetMetrics(metricsReg)
	srv := server.New(cfg.Addr, cfg.ConnTimeoutMS, d, clk, metricsReg, cfg.MaxConns)

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = startMetricsServer(cfg.HTTPAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errCh <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigCh:
		log.Printf("stormkv: signal received: %v, shutting down", sig)
	case err := <-errCh:
		log.Printf("stormkv: %v", err)
	}

	if err := srv.Shutdown(5 * time.Second); err != nil {
		log.Printf("stormkv: tcp shutdown error: %v", err)
	}
	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("stormkv: http shutdown error: %v", err)
		}
	}

	log.Println("stormkv: shutdown complete")
	return nil
}

func applyRuntimeTuning(cfg *config.Config) {
	if cfg.GOMAXPROCS > 0 {
		runtime.GOMAXPROCS(cfg.GOMAXPROCS)
	}
	if cfg.GOGC >= 0 {
		debug.SetGCPercent(cfg.GOGC)
	} else {
		debug.SetGCPercent(-1)
	}
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("stormkv: metrics server error: %v", err)
		}
	}()
	log.Printf("stormkv: metrics listening on %s", addr)
	return srv
}

func printBanner(cfg *config.Config) {
	banner := `
========================================
   STORMKV v%s
========================================
  In-memory key/value store
  Non-blocking single-threaded event loop
========================================

System:
  Go:             %s
  CPU:            %d cores
  GOMAXPROCS:     %d
  Platform:       %s/%s

Config:
  Listen:         %s
  Conn timeout:   %dms
  Metrics:        %s
  Max conns:      %s

========================================
`
	maxConns := "unlimited"
	if cfg.MaxConns > 0 {
		maxConns = fmt.Sprintf("%d", cfg.MaxConns)
	}
	metricsAddr := "disabled"
	if cfg.HTTPAddr != "" {
		metricsAddr = cfg.HTTPAddr
	}

	fmt.Printf(banner,
		Version,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.GOMAXPROCS(0),
		runtime.GOOS, runtime.GOARCH,
		cfg.Addr,
		cfg.ConnTimeoutMS,
		metricsAddr,
		maxConns,
	)
}
