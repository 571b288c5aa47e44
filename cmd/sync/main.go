package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jerseysync/internal/config"
	"jerseysync/internal/files"
	"jerseysync/internal/logging"
	"jerseysync/internal/mailer"
	"jerseysync/internal/metrics"
	"jerseysync/internal/portal"
	"jerseysync/internal/prefs"
	"jerseysync/internal/reports"
	"jerseysync/internal/retry"
	"jerseysync/internal/sheets"
	"jerseysync/internal/verify"
)

const usage = `usage: jerseysync [-config path] [-n count] <command>

commands:
  seasons      log in and list the seasons the portal offers
  download     capture the master registration report
  pending      list orders awaiting first contact
  next         draft and mark the next pending order
  batch        draft and mark up to -n pending orders
  send-drafts  send every reviewed draft in the mailbox
  export       clean the newest downloaded report and export it as xlsx
  cleanup      delete downloads past the retention window
`

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	batchSize := flag.Int("n", 0, "batch size override for the batch command")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		flag.Usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	base, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger, _ := logging.WithRun(base)
	logger.Info().Str("command", command).Msg("starting")

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &application{cfg: cfg, logger: logger, prefs: prefs.NewStore(cfg.Batch.PrefsPath)}

	switch command {
	case "seasons":
		return app.listSeasons(ctx)
	case "download":
		return app.downloadMaster(ctx)
	case "pending":
		return app.listPending(ctx)
	case "next":
		return app.processNext(ctx)
	case "batch":
		return app.processBatch(ctx, *batchSize)
	case "send-drafts":
		return app.sendDrafts(ctx)
	case "export":
		return app.exportNewest()
	case "cleanup":
		return app.cleanup()
	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics endpoint failed")
	}
}

type application struct {
	cfg    *config.Config
	logger *zerolog.Logger
	prefs  *prefs.Store
}

func (a *application) policy() *retry.Policy {
	return retry.NewPolicy(a.cfg.Retry, a.logger)
}

// portalClient starts a browser session and authenticates. The returned
// close func must run before the process exits.
func (a *application) portalClient(ctx context.Context) (*portal.Client, func(), error) {
	session, err := portal.NewSession(ctx, a.cfg.Portal, a.cfg.Downloads, a.logger)
	if err != nil {
		return nil, nil, err
	}
	client := portal.NewClient(session, a.logger)
	if err := client.Authenticate(ctx); err != nil {
		session.Close()
		return nil, nil, err
	}
	return client, session.Close, nil
}

func (a *application) verifier(ctx context.Context) (*verify.Verifier, error) {
	policy := a.policy()
	store, err := sheets.NewService(ctx, a.cfg.Google, policy, a.logger)
	if err != nil {
		return nil, err
	}
	drafts, err := mailer.NewService(ctx, a.cfg.Google, policy, a.logger)
	if err != nil {
		return nil, err
	}
	return verify.NewVerifier(store, drafts, a.logger), nil
}

func (a *application) listSeasons(ctx context.Context) error {
	client, closeSession, err := a.portalClient(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	seasons, err := client.AvailableSeasons(ctx)
	if err != nil {
		return err
	}
	for _, s := range seasons {
		fmt.Println(s.DisplayName())
	}
	return nil
}

func (a *application) downloadMaster(ctx context.Context) error {
	client, closeSession, err := a.portalClient(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	path, err := client.DownloadMasterReport(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().Str("path", path).Msg("master report downloaded")
	fmt.Println(path)

	if err := a.prefs.SetLastMode("download"); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save preferences")
	}
	return nil
}

func (a *application) listPending(ctx context.Context) error {
	policy := a.policy()
	store, err := sheets.NewService(ctx, a.cfg.Google, policy, a.logger)
	if err != nil {
		return err
	}

	v := verify.NewVerifier(store, nil, a.logger)
	pending, err := v.Pending(ctx)
	if err != nil {
		return err
	}
	for _, o := range pending {
		fmt.Printf("row %d: %s (%s)\n", o.Row, o.FullName(), strings.Join(o.ParentEmails(), ", "))
	}
	fmt.Printf("%d pending\n", len(pending))
	return nil
}

func (a *application) processNext(ctx context.Context) error {
	v, err := a.verifier(ctx)
	if err != nil {
		return err
	}

	res, err := v.ProcessNext(ctx)
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Println("nothing pending")
		return nil
	}
	fmt.Printf("drafted %s (draft %s)\n", res.Order.FullName(), res.DraftID)
	return nil
}

func (a *application) processBatch(ctx context.Context, override int) error {
	n := override
	if n <= 0 {
		n = a.prefs.Load().BatchSize
	}
	if n <= 0 {
		n = a.cfg.Batch.Size
	}

	v, err := a.verifier(ctx)
	if err != nil {
		return err
	}

	res, batchErr := v.ProcessBatch(ctx, n)
	for _, r := range res.Processed {
		fmt.Printf("drafted %s (draft %s)\n", r.Order.FullName(), r.DraftID)
	}
	if res.RateLimited {
		fmt.Println("stopped early: remote rate limit reached, re-run later to continue")
	}

	if override > 0 {
		if err := a.prefs.SetBatchSize(override); err != nil {
			a.logger.Warn().Err(err).Msg("failed to save preferences")
		}
	}
	if err := a.prefs.SetLastMode("batch"); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save preferences")
	}
	return batchErr
}

func (a *application) sendDrafts(ctx context.Context) error {
	svc, err := mailer.NewService(ctx, a.cfg.Google, a.policy(), a.logger)
	if err != nil {
		return err
	}

	results, err := svc.SendAllDrafts(ctx)
	if err != nil {
		return err
	}
	sent, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			sent++
		}
	}
	fmt.Printf("sent %d, skipped %d, failed %d\n", sent, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d drafts failed to send", failed)
	}
	return nil
}

// exportNewest cleans the most recent downloaded report and writes it
// next to the original as .xlsx.
func (a *application) exportNewest() error {
	infos, err := files.List(a.cfg.Downloads.Directory, "*.csv")
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no downloaded reports in %s", a.cfg.Downloads.Directory)
	}
	newest := infos[0]

	proc := reports.NewProcessor(a.logger)
	table, err := proc.LoadCSV(newest.Path)
	if err != nil {
		return err
	}
	proc.Clean(table)
	proc.RequireColumns(table, "first_name", "last_name")

	out := strings.TrimSuffix(newest.Path, filepath.Ext(newest.Path)) + ".xlsx"
	if err := proc.ExportXLSX(table, out); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func (a *application) cleanup() error {
	removed, err := files.CleanupOlderThan(a.cfg.Downloads.Directory, a.cfg.Downloads.RetentionDays)
	if err != nil {
		return err
	}
	a.logger.Info().Int("removed", removed).Msg("retention cleanup finished")
	fmt.Printf("removed %d files\n", removed)
	return nil
}
