package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/otherjamesbrown/gendercode/pkg/coding"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
)

// batchOptions holds the batch command flags.
type batchOptions struct {
	input           string
	encoding        string
	out             string
	noProgress      bool
	metricsTextfile string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps(nil)
	}
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify a CSV file of first names",
		Long: `Classify every name in a CSV file as one batch.

The input has one name per line, optionally followed by an identifier:

  first_name,unique_id
  John,emp-001
  Mary-Jane,emp-002

A header row is detected when its first cell is "name" or "first_name".
Input is read as UTF-8 (a byte order mark is ignored); use --encoding for
exports from older systems, e.g. windows-1252 or iso-8859-1.
Results keep the input order. Use -o to choose csv, json, yaml or a text
table, and --out to write them to a file instead of stdout.

On a terminal a progress bar is shown on stderr; otherwise progress is
logged. --metrics-textfile writes the batch metrics in the Prometheus
textfile collector format.

Examples:
  gendercode batch --input staff.csv -o csv --out coded.csv
  cat names.txt | gendercode batch --input - -o json
  gendercode batch -i legacy.csv --encoding windows-1252
  gendercode batch -i staff.csv --workers 8 --metrics-textfile /var/lib/node_exporter/gendercode.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), deps, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "CSV file to classify, or - for stdin")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "utf-8", "Character encoding of the input")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write results to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write batch metrics to this file (overrides metrics.textfile)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runBatch(ctx context.Context, deps *Deps, stdout, stderr io.Writer, opts *batchOptions) error {
	inputs, err := readInputs(deps, opts.input, opts.encoding)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	s, err := openSession(ctx, deps, coding.WithMetrics(coding.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer s.Close()

	stop := trackProgress(s.processor, deps, stderr, len(inputs), opts.noProgress, s.logger)
	start := time.Now()
	results, err := s.processor.ClassifyInputs(ctx, inputs)
	stop()
	if err != nil {
		return fmt.Errorf("classifying batch: %w", err)
	}
	s.logger.Info("Batch classified",
		logging.F("names", len(results)),
		logging.F("workers", s.processor.Workers()),
		logging.F("duration", time.Since(start)))

	textfile := opts.metricsTextfile
	if textfile == "" {
		textfile = s.cfg.Metrics.Textfile
	}
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, reg); err != nil {
			return fmt.Errorf("writing metrics textfile: %w", err)
		}
	}

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeResults(out, s.cfg.OutputFormat, results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// readInputs reads name[,id] records from path, or stdin when path is "-",
// decoding them from charset.
func readInputs(deps *Deps, path, charset string) ([]coding.Input, error) {
	enc, err := inputEncoding(charset)
	if err != nil {
		return nil, err
	}

	var r io.Reader
	if path == "-" {
		r = deps.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: input file %s", gcerrors.ErrNotFound, path)
			}
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parseInputs(transform.NewReader(r, enc.NewDecoder()))
}

// inputEncoding maps a charset name to its decoder. UTF-8 input has any
// leading byte order mark removed.
func inputEncoding(charset string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii":
		return unicode.UTF8BOM, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "iso-8859-1", "latin1", "iso_8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250, nil
	default:
		return nil, fmt.Errorf("%w: unsupported input encoding %q", gcerrors.ErrValidation, charset)
	}
}

// parseInputs parses CSV records of the form name[,id]. Blank names are kept
// so that row numbers match the input; they classify as unknown.
func parseInputs(r io.Reader) ([]coding.Input, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var inputs []coding.Input
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading input: %v", gcerrors.ErrValidation, err)
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		in := coding.Input{FirstName: record[0]}
		if len(record) > 1 {
			in.UniqueID = strings.TrimSpace(record[1])
		}
		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: input contains no names", gcerrors.ErrValidation)
	}
	return inputs, nil
}

func isHeader(record []string) bool {
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "name", "first_name", "firstname":
		return true
	}
	return false
}

// trackProgress reports batch progress on a progress bar when stderr is a
// terminal, and as log lines otherwise. The returned function unregisters
// the listener.
func trackProgress(p *coding.Processor, deps *Deps, stderr io.Writer, total int, disabled bool, logger logging.Logger) func() {
	if disabled {
		return func() {}
	}

	if !deps.IsTerminal(stderr) {
		unregister := p.OnProgress(func(ev coding.ProgressEvent) {
			logger.Info("Batch progress",
				logging.F("batch_id", ev.BatchID),
				logging.F("completed", ev.Completed),
				logging.F("total", ev.Total),
				logging.F("percent", ev.Percent()))
		})
		return unregister
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	unregister := p.OnProgress(func(ev coding.ProgressEvent) {
		_ = bar.Set(ev.Completed)
		if ev.Done {
			_ = bar.Finish()
		}
	})
	return unregister
}
