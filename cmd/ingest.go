package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	gcsclient "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/api"
	"github.com/openrecords/caseharvester/internal/auth"
	"github.com/openrecords/caseharvester/internal/clock/system"
	"github.com/openrecords/caseharvester/internal/config"
	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/hash/sha256"
	"github.com/openrecords/caseharvester/internal/id/uuid"
	"github.com/openrecords/caseharvester/internal/ingest"
	"github.com/openrecords/caseharvester/internal/logging"
	"github.com/openrecords/caseharvester/internal/portal"
	"github.com/openrecords/caseharvester/internal/progress"
	progsinks "github.com/openrecords/caseharvester/internal/progress/sinks"
	pubsubpub "github.com/openrecords/caseharvester/internal/publisher/pubsub"
	gcsstore "github.com/openrecords/caseharvester/internal/storage/gcs"
	localstore "github.com/openrecords/caseharvester/internal/storage/local"
	memorystore "github.com/openrecords/caseharvester/internal/storage/memory"
	mongostore "github.com/openrecords/caseharvester/internal/storage/mongo"
	pgstore "github.com/openrecords/caseharvester/internal/storage/postgres"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <case-ids-file>",
		Short: "Ingest a batch of case identifiers",
		Long: `Reads case identifiers from a file (one per line, # starts a comment),
fetches each case and its documents from the portal, and persists them to
the configured storage backend. Already-ingested cases are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	identifiers, err := readIdentifiers(args[0])
	if err != nil {
		return err
	}
	if len(identifiers) == 0 {
		return fmt.Errorf("no case identifiers in %s", args[0])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := system.New()
	idGen := uuid.New()
	hasher := sha256.New()

	portalCfg := portal.Config{
		BaseURL:   cfg.Portal.BaseURL,
		Timeout:   cfg.PortalTimeout(),
		ProxyURL:  cfg.Portal.ProxyURL,
		UserAgent: cfg.Portal.UserAgent,
	}
	solver, err := portal.NewSolver(portal.SolverConfig{
		APIURL:       cfg.Solver.APIURL,
		APIKey:       cfg.Solver.APIKey,
		SiteKey:      cfg.Solver.SiteKey,
		PageURL:      cfg.Solver.PageURL,
		PollInterval: time.Duration(cfg.Solver.PollIntervalSeconds) * time.Second,
		Timeout:      time.Duration(cfg.Solver.TimeoutSeconds) * time.Second,
	}, clk, logger)
	if err != nil {
		return fmt.Errorf("init solver: %w", err)
	}
	issuer, err := portal.NewIssuer(portalCfg, clk, logger)
	if err != nil {
		return fmt.Errorf("init issuer: %w", err)
	}
	caseClient, err := portal.NewCaseClient(portalCfg, logger)
	if err != nil {
		return fmt.Errorf("init case client: %w", err)
	}
	docClient, err := portal.NewDocumentClient(portalCfg, logger)
	if err != nil {
		return fmt.Errorf("init document client: %w", err)
	}

	buffer := auth.NewBuffer(solver, clk, auth.BufferConfig{
		Size:            cfg.Auth.BufferSize,
		SolveRetryDelay: time.Duration(cfg.Auth.SolveRetrySeconds) * time.Second,
	}, logger)
	go buffer.Run(ctx)

	rotator := auth.NewRotator(buffer, issuer, clk, auth.RotatorConfig{
		RefreshInterval: cfg.RefreshInterval(),
		TakeTimeout:     time.Duration(cfg.Auth.TakeTimeoutSeconds) * time.Second,
	}, logger)
	logger.Info("acquiring initial credential")
	if err := rotator.Start(ctx); err != nil {
		return err
	}
	go rotator.Run(ctx)

	sink, cleanupSink, err := buildSink(ctx, cfg, clk, logger)
	if err != nil {
		return err
	}
	defer cleanupSink()

	publisher, cleanupPub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupPub()

	hub, err := buildProgressHub(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hub.Close(closeCtx)
	}()

	ops := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewServer(rotator, logger).Handler(),
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ops.Shutdown(shutdownCtx)
	}()

	policy := ingest.NewRetryPolicyWithDelays(
		cfg.Ingest.MaxRetries,
		time.Duration(cfg.Ingest.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.Ingest.BackoffMaxMs)*time.Millisecond,
	)
	orch := ingest.New(
		caseClient, docClient, rotator, sink,
		policy, clk, idGen, hasher,
		publisher, hub,
		ingest.Config{
			CaseWorkers:     cfg.Ingest.CaseWorkers,
			DocumentWorkers: cfg.Ingest.DocumentWorkers,
			RequestTimeout:  cfg.RequestTimeout(),
			Topic:           cfg.PubSub.TopicName,
		},
		logger,
	)

	summary := orch.Run(ctx, identifiers)
	printSummary(cmd.OutOrStdout(), summary)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d cases failed", summary.Failed, summary.Total)
	}
	return nil
}

// readIdentifiers loads one case identifier per line. Blank lines and lines
// starting with # are skipped.
func readIdentifiers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case ids file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read case ids file: %w", err)
	}
	return ids, nil
}

func buildSink(ctx context.Context, cfg config.Config, clk court.Clock, logger *zap.Logger) (court.RecordSink, func(), error) {
	switch cfg.Storage.Sink {
	case "postgres":
		blobs, cleanupBlobs, err := buildBlobStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		sink, err := pgstore.NewSink(ctx, pgstore.SinkConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
			MinConns: int32(cfg.DB.MinConns),
		}, blobs, logger)
		if err != nil {
			cleanupBlobs()
			return nil, nil, fmt.Errorf("init postgres sink: %w", err)
		}
		return sink, func() { sink.Close(); cleanupBlobs() }, nil
	case "mongo":
		sink, err := mongostore.NewSink(ctx, mongostore.SinkConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, clk, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init mongo sink: %w", err)
		}
		return sink, func() {}, nil
	case "memory":
		return memorystore.NewSink(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage sink %q", cfg.Storage.Sink)
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (court.BlobStore, func(), error) {
	switch cfg.Storage.Blobs {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	case "local":
		store, err := localstore.New(localstore.Config{BaseDir: cfg.Storage.LocalBaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, func() {}, nil
	case "memory":
		return memorystore.NewBlobStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob store %q", cfg.Storage.Blobs)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (court.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		return nil, func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub := client.Publisher(cfg.PubSub.TopicName)
	return pubsubpub.New(pub), func() {
		pub.Stop()
		_ = client.Close()
	}, nil
}

func buildProgressHub(cfg config.Config, logger *zap.Logger) (*progress.Hub, error) {
	sinks := []progress.Sink{progsinks.NewLogSink(logger)}
	promSink, err := progsinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus progress sink: %w", err)
	}
	sinks = append(sinks, promSink)
	if cfg.Progress.JournalPath != "" {
		journal, err := progsinks.NewJournalSink(cfg.Progress.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("init journal sink: %w", err)
		}
		sinks = append(sinks, journal)
	}
	return progress.NewHub(progress.Config{Logger: logger}, sinks...), nil
}

func printSummary(w io.Writer, summary court.RunSummary) {
	fmt.Fprintf(w, "run %s finished in %s\n", summary.RunID, summary.Finished.Sub(summary.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "  total:       %d\n", summary.Total)
	fmt.Fprintf(w, "  succeeded:   %d\n", summary.Succeeded)
	fmt.Fprintf(w, "  skipped:     %d\n", summary.Skipped)
	fmt.Fprintf(w, "  failed:      %d\n", summary.Failed)
	fmt.Fprintf(w, "  interrupted: %d\n", summary.Interrupted)
	for _, res := range summary.Results {
		if res.Outcome == court.OutcomeFailed {
			fmt.Fprintf(w, "  FAILED %s: %s (attempts=%d)\n", res.Identifier, res.Reason, res.Attempts)
		}
	}
}
