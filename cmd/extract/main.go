package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"calibra/internal/config"
	"calibra/internal/domain"
	"calibra/internal/export"
	"calibra/internal/extractor"
	_ "calibra/internal/extractor/claude"
	_ "calibra/internal/extractor/gemini"
	_ "calibra/internal/extractor/openai"
	"calibra/internal/imagesource"
	"calibra/internal/imaging"
	"calibra/internal/logutil"
	"calibra/internal/port"
	"calibra/internal/report"
	"calibra/internal/service"
	s3storage "calibra/internal/storage/s3"
)

const (
	exitError       = 1
	exitParseFailed = 2
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	rawOutput  bool
	outPath    string
	format     string
	provider   string
	model      string
	verbose    bool
}

// serviceFactory builds the extraction service from loaded config.
type serviceFactory func(cfg *config.Config, ref string) (service.ExtractionService, error)

type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (*config.Config, error)
	newService serviceFactory
}

func main() {
	a := &app{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		loadConfig: config.Load,
	}
	a.newService = a.defaultService

	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, domain.ErrParseFailure) {
			os.Exit(exitParseFailed)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func (a *app) run(args []string) error {
	opts := &cliOptions{}
	cmd := a.newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd.Execute()
}

func (a *app) newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibra-extract",
		Short: "Extract calibration values from a QA screenshot",
		Long: "Sends a calibration screenshot to a vision model, parses the JSON it returns " +
			"and prints a markdown calibration report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), *opts)
		},
	}

	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "Image path, '-' for stdin, or s3://bucket/key (defaults to the configured sample image)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the full extraction as JSON")
	cmd.Flags().BoolVar(&opts.rawOutput, "raw", false, "Print the raw model response instead of the report")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Write the report to this file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Report file format: txt, csv or xlsx (default from --out extension, else txt)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Override the configured provider ("+strings.Join(extractor.Providers(), ", ")+")")
	cmd.Flags().StringVar(&opts.model, "model", "", "Override the configured model")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	return cmd
}

func (a *app) execute(ctx context.Context, opts cliOptions) error {
	// Logs go to stderr only when asked, keeping stdout clean for the report.
	if opts.verbose {
		logutil.Setup(config.LogConfig{Level: "info", Format: "plain"}, a.stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	format, err := resolveFormat(opts.format, opts.outPath)
	if err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.provider != "" {
		cfg.Extractor.Provider = strings.ToLower(opts.provider)
	}
	if opts.model != "" {
		cfg.Extractor.Model = opts.model
	}

	ref := opts.filePath
	if ref == "" {
		ref = cfg.Extraction.SampleImage
	}
	if ref == "" {
		return errors.New("--file is required (or set CALIBRA_EXTRACTION_SAMPLE_IMAGE)")
	}

	svc, err := a.newService(cfg, ref)
	if err != nil {
		return err
	}

	log.Printf("extract: provider=%s model=%q key=%s source=%s",
		cfg.Extractor.Provider, cfg.Extractor.Model, logutil.RedactKey(cfg.Extractor.APIKey), ref)

	ext, err := svc.ExtractFromSource(ctx, ref)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if err := a.print(ext, opts); err != nil {
		return err
	}

	if !ext.Parsed() {
		fmt.Fprintln(a.stderr, "Could not parse JSON from model output. Raw response:")
		fmt.Fprintln(a.stderr, ext.RawResponse)
		return domain.ErrParseFailure
	}

	if opts.outPath != "" {
		artifact, err := svc.Export(ext, format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.outPath, artifact.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.outPath, err)
		}
		fmt.Fprintf(a.stderr, "Report written to %s\n", opts.outPath)
	}
	return nil
}

func (a *app) print(ext *domain.Extraction, opts cliOptions) error {
	switch {
	case opts.jsonOutput:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ext); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	case opts.rawOutput:
		fmt.Fprintln(a.stdout, ext.RawResponse)
	case ext.Parsed():
		fmt.Fprintln(a.stdout, ext.Report.Text())
	}
	return nil
}

// resolveFormat picks the export format from the flag, then the output
// file extension, then plain text.
func resolveFormat(flag, outPath string) (domain.ExportFormat, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if ext := strings.TrimPrefix(filepath.Ext(outPath), "."); ext != "" {
		if f, err := export.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return domain.ExportFormatText, nil
}

func (a *app) defaultService(cfg *config.Config, ref string) (service.ExtractionService, error) {
	x, err := extractor.NewExtractor(&cfg.Extractor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	var storage port.ObjectStorage
	if strings.HasPrefix(ref, "s3://") {
		storage, err = s3storage.NewS3Client(&cfg.S3, cfg.Extraction.MaxImageBytes())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	builder := report.NewBuilder(cfg.Report.Title, domain.ParsePresencePolicy(cfg.Report.PresencePolicy), nil)
	resolver := imagesource.NewResolver(storage, a.stdin, cfg.Extraction.MaxImageBytes())
	return service.NewExtractionService(x, builder, resolver,
		imaging.Limits{MaxBytes: cfg.Extraction.MaxImageBytes(), MaxPixels: cfg.Extraction.MaxImagePixels()},
		cfg.Extraction.SampleImage), nil
}
