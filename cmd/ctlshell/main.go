package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/TheLegendszs/v4l4j/control"
	"github.com/TheLegendszs/v4l4j/resolution"
)

func main() {
	var (
		profilePath = flag.String("profile", "", "Path to a JSON device profile (default: built-in camera)")
		backend     = flag.String("backend", "sim", "Component backend: sim or wasm")
		timeout     = flag.Duration("timeout", 2*time.Second, "Bound on each exchange cycle (0 disables)")
		verbose     = flag.Bool("v", false, "Log every exchange and transaction")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		metricsAddr = flag.String("metrics", "", "Serve exchange metrics on this address, e.g. :9100")
	)
	flag.Usage = usage
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
	}
	control.SetLogger(log)
	resolution.SetLogger(log)

	ctx := context.Background()
	s, err := newShell(ctx, config{
		profile: *profilePath,
		backend: *backend,
		timeout: *timeout,
		log:     log,
		out:     os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.close(ctx)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, s, log)
	}

	args := flag.Args()
	if *interactive || (len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))) {
		if err := runInteractive(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if err := s.exec(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string, s *shell, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ctlshell [flags] list")
	fmt.Fprintln(os.Stderr, "       ctlshell [flags] get <path>")
	fmt.Fprintln(os.Stderr, "       ctlshell [flags] set <path> <value> [<path> <value>...]")
	fmt.Fprintln(os.Stderr, "       ctlshell [flags] resolutions <fourcc|format>")
	fmt.Fprintln(os.Stderr, "       ctlshell [flags] -i  (interactive mode)")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}
