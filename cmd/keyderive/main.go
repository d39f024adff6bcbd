package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wallet-core/go-backend/internal/bootstrap/coreconfig"
	"wallet-core/go-backend/internal/identity"
	"wallet-core/go-backend/internal/keyservice"
	"wallet-core/go-backend/internal/platform/privacylog"
	"wallet-core/go-backend/internal/platform/scheduler"
	"wallet-core/go-backend/internal/platform/wipe"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	rootSecretEnv     = "WALLET_ROOT_SECRET"
	rootMnemonicEnv   = "WALLET_ROOT_MNEMONIC"
	rootPassphraseEnv = "WALLET_ROOT_PASSPHRASE"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var errNoRootSecret = errors.New("root secret is not configured")

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to walletcore.yaml (optional)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: keyderive [-config path] contentID...\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "The root secret is read from %s (hex) or %s (+ %s).\n\n", rootSecretEnv, rootMnemonicEnv, rootPassphraseEnv)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("keyderive version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("keyderive failed: %v", err)
	}
}

func run(ctx context.Context, configPath string, contentIDs []string, out io.Writer) error {
	cfg, err := coreconfig.LoadFromPath(configPath)
	if err != nil {
		return err
	}
	logger := privacylog.NewLogger(os.Stderr, privacylog.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	reg := prometheus.NewRegistry()
	metrics, err := scheduler.NewMetrics(reg)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(cfg.Scheduler, scheduler.WithLogger(logger), scheduler.WithMetrics(metrics))
	if err != nil {
		return err
	}
	svc := keyservice.New(identity.NewEngine(identity.WithLogger(logger)), sched, logger)

	root, err := rootSecretFromEnv()
	if err != nil {
		return err
	}
	defer wipe.Erase(root)

	keys, err := svc.DeriveBatch(ctx, root, contentIDs)
	if err != nil {
		return err
	}
	defer keyservice.Release(keys...)

	for i, k := range keys {
		if _, err := fmt.Fprintf(out, "%s %s %s\n", contentIDs[i], identity.Fingerprint(k.SigningPublicKey), hex.EncodeToString(k.SigningPublicKey)); err != nil {
			return err
		}
	}
	logger.Info("content keys derived", "component", "keyderive", "count", len(keys))
	logMetrics(ctx, logger, reg)
	return nil
}

// logMetrics writes one debug record per gathered sample.
func logMetrics(ctx context.Context, logger *slog.Logger, g prometheus.Gatherer) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	families, err := g.Gather()
	if err != nil {
		logger.Warn("gather metrics failed", "component", "keyderive", "error", err.Error())
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"component", "keyderive", "metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetGauge() != nil:
				attrs = append(attrs, "value", m.GetGauge().GetValue())
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			logger.Debug("scheduler metric", attrs...)
		}
	}
}

func rootSecretFromEnv() (identity.RootSecret, error) {
	if raw := strings.TrimSpace(os.Getenv(rootSecretEnv)); raw != "" {
		root, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rootSecretEnv, err)
		}
		return identity.RootSecret(root), nil
	}
	if mnemonic := os.Getenv(rootMnemonicEnv); strings.TrimSpace(mnemonic) != "" {
		return identity.RootSecretFromMnemonic(mnemonic, os.Getenv(rootPassphraseEnv))
	}
	return nil, fmt.Errorf("%w: set %s or %s", errNoRootSecret, rootSecretEnv, rootMnemonicEnv)
}
