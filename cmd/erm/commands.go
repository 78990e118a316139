package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/cli"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/pipeline"
	"github.com/blockgoats/erm-sub000/internal/server"
	"github.com/blockgoats/erm-sub000/internal/watcher"
)

const defaultServerURL = "http://localhost:8080"

func runServer(args []string) int {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, logger, err := setup(*configPath, *debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		watcher.UploadFunc(watchCtx, components.Processor, cfg.Watch.OrganizationID, cfg.Watch.UploadedBy, logger),
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Error("Failed to start watcher", zap.Error(err))
		return 1
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.Processor, components.Storage, cfg, logger, watchSvc, resolvedConfigPath)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	code := 0
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		code = 1
	}

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	return code
}

func runIngest(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	org := fs.String("org", "", "organization id (required)")
	user := fs.String("user", "", "uploading user id (required)")
	docType := fs.String("type", "", "document type: contract, policy, compliance_report, audit_finding, risk_assessment, other")
	noProcess := fs.Bool("no-process", false, "store the document without processing it")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: erm ingest [flags] <file>")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read file: %v\n", err)
		return 1
	}

	cfg, _, logger, err := setup(*configPath, *debug)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer components.Close()

	in := pipeline.IngestInput{
		OrganizationID: *org,
		UploadedBy:     *user,
		FileName:       filepath.Base(path),
		Content:        content,
		DocumentType:   models.DocumentType(*docType),
	}
	ctx := context.Background()
	if *noProcess {
		doc, err := components.Processor.Ingest(ctx, in)
		if err != nil {
			fmt.Fprintf(stderr, "Ingest failed: %v\n", err)
			return 1
		}
		if format == cli.OutputJSON {
			return writeOrFail(stderr, cli.WriteJSON(stdout, doc))
		}
		cli.WriteDocument(stdout, doc)
		return 0
	}

	doc, result, err := components.Processor.Upload(ctx, in)
	if err != nil {
		if doc != nil {
			fmt.Fprintf(stderr, "Processing failed for document %s: %v\n", doc.ID, err)
		} else {
			fmt.Fprintf(stderr, "Ingest failed: %v\n", err)
		}
		return 1
	}
	return writeOrFail(stderr, cli.WriteResult(stdout, result, format))
}

func runProcess(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: erm process [flags] <document-id>")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, _, logger, err := setup(*configPath, *debug)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer components.Close()

	result, err := components.Processor.Process(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Processing failed: %v\n", err)
		return 1
	}
	return writeOrFail(stderr, cli.WriteResult(stdout, result, format))
}

type reviewResponse struct {
	OrganizationID string                    `json:"organization_id"`
	Count          int                       `json:"count"`
	Clauses        []*models.ExtractedClause `json:"clauses"`
}

func runReview(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	org := fs.String("org", "", "organization id (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 2
	}
	if *org == "" {
		fmt.Fprintln(stderr, "Usage: erm review -org <organization-id> [flags]")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var clauses []*models.ExtractedClause
	if *serverURL != "" {
		var res reviewResponse
		if err := getJSON(*serverURL+"/api/v1/review?organization_id="+url.QueryEscape(*org), &res); err != nil {
			fmt.Fprintf(stderr, "Review failed: %v\n", err)
			return 1
		}
		clauses = res.Clauses
	} else {
		cfg, _, logger, err := setup(*configPath, false)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
			return 1
		}
		defer components.Close()
		clauses, err = components.Processor.ListPendingReview(context.Background(), *org)
		if err != nil {
			fmt.Fprintf(stderr, "Review failed: %v\n", err)
			return 1
		}
	}
	return writeOrFail(stderr, cli.WriteReviewQueue(stdout, *org, clauses, format))
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var status *models.Status
	if *serverURL != "" {
		status = &models.Status{}
		if err := getJSON(*serverURL+"/api/v1/status", status); err != nil {
			fmt.Fprintf(stderr, "Status failed: %v\n", err)
			return 1
		}
	} else {
		cfg, _, logger, err := setup(*configPath, false)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
			return 1
		}
		defer components.Close()
		status, err = server.CollectStatus(context.Background(), components.Storage, cfg, cfg.Watch.Directories)
		if err != nil {
			fmt.Fprintf(stderr, "Status failed: %v\n", err)
			return 1
		}
	}
	return writeOrFail(stderr, cli.WriteStatus(stdout, status, format))
}

func printWatchUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: erm watch <add|remove|list> [flags] [path]")
	fmt.Fprintln(w, "  erm watch add <path>     Add inbox directory")
	fmt.Fprintln(w, "  erm watch remove <path>  Remove inbox directory")
	fmt.Fprintln(w, "  erm watch list           List inbox directories")
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printWatchUsage(stderr)
		return 1
	}
	sub := args[0]
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not upload files already in the directory (add only)")
	if err := fs.Parse(argsReorder(args[1:])); err != nil {
		return 2
	}
	endpoint := *serverURL + "/api/v1/watch/directories"

	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Fprintf(stderr, "Usage: erm watch %s <path>\n", sub)
			return 1
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Invalid path: %v\n", err)
			return 1
		}
		if sub == "add" {
			body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": !*noSync})
			err = doRequest(http.MethodPost, endpoint, bytes.NewReader(body), http.StatusCreated)
		} else {
			err = doRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil, http.StatusOK)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Watch %s failed: %v\n", sub, err)
			return 1
		}
		if sub == "add" {
			fmt.Fprintf(stdout, "Added: %s\n", path)
		} else {
			fmt.Fprintf(stdout, "Removed: %s\n", path)
		}
		return 0
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(endpoint, &out); err != nil {
			fmt.Fprintf(stderr, "Watch list failed: %v\n", err)
			return 1
		}
		for _, d := range out.Directories {
			fmt.Fprintln(stdout, d)
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown watch subcommand: %s\n", sub)
		printWatchUsage(stderr)
		return 1
	}
}

// argsReorder moves any flags (and their values) that appear after the first
// positional argument to the front of the slice so that flag.Parse() sees them.
// Go's flag package stops at the first non-flag argument, so
// "erm ingest contract.pdf -org acme" would otherwise leave -org unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

var errUnexpectedStatus = errors.New("unexpected server response")

func doRequest(method, endpoint string, body io.Reader, want int) error {
	req, err := http.NewRequest(method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %d: %s", errUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}

func getJSON(endpoint string, v interface{}) error {
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %d: %s", errUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func writeOrFail(stderr io.Writer, err error) int {
	if err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `erm - document intelligence for enterprise risk management

Usage:
  erm <command> [flags]

Commands:
  server              Start the HTTP API and inbox watcher
  ingest <file>       Store a document and run the extraction pipeline
  process <doc-id>    Re-run the pipeline for a stored document
  review -org <id>    List clauses awaiting human review
  status              Show store counts and the active policy
  watch <add|remove|list>  Manage inbox directories on a running server
  version             Print version
  help                Show this help

Run 'erm <command> -h' for command flags.`)
}
