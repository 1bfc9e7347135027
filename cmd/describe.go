package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/assistant"
	"github.com/KaramelBytes/datalens-cli/internal/charset"
	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/loader"
	"github.com/KaramelBytes/datalens-cli/internal/logging"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

var (
	descJSON      bool
	descMarkdown  bool
	descOutput    string
	descDelimiter string
	descSheetName string
	descMaxRows   int
	descHeadRows  int
	descStats     bool
	descMissing   bool
	descTypes     bool
	descAll       bool
)

// inputFlags are the loader knobs shared by describe and ask.
type inputFlags struct {
	Delimiter string
	SheetName string
	MaxRows   int
	HeadRows  int
}

// sessionOptions merges config with command flags. Flags win when set.
func sessionOptions(c *cfgpkg.Global, in inputFlags) (assistant.Options, error) {
	opt := assistant.Options{
		Load: loader.Options{
			Delimiter: c.Delimiter(),
			MaxRows:   c.MaxRows,
			SheetName: in.SheetName,
			Charset: charset.Options{
				MinConfidence: c.MinConfidence,
				FallbackLabel: c.FallbackEncoding,
			},
		},
		HeadRows:     c.HeadRows,
		SystemPrompt: c.SystemPrompt,
	}
	if in.Delimiter != "" {
		d, err := parseDelimiter(in.Delimiter)
		if err != nil {
			return opt, err
		}
		opt.Load.Delimiter = d
	}
	if in.MaxRows > 0 {
		opt.Load.MaxRows = in.MaxRows
	}
	if in.HeadRows > 0 {
		opt.HeadRows = in.HeadRows
	}
	if opt.SystemPrompt == "" {
		opt.SystemPrompt = cfgpkg.DefaultSystemPrompt
	}
	return opt, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case ",":
		return ',', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s (use ','|';'|'tab'|'pipe')", s)
}

// expandInputs resolves globs, drops duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

var describeCmd = &cobra.Command{
	Use:   "describe <files...>",
	Short: "Preview a CSV/XLSX/XLS file with statistics, missing values and column types",
	Example: `  datalens describe sales.csv
  datalens describe report.xlsx --sheet-name Q3 --all
  datalens describe "data/*.csv" --markdown --output summaries/
  datalens describe sales.csv --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		opt, err := sessionOptions(effectiveConfig(), inputFlags{
			Delimiter: descDelimiter,
			SheetName: descSheetName,
			MaxRows:   descMaxRows,
			HeadRows:  descHeadRows,
		})
		if err != nil {
			return err
		}
		extras := assistant.Extras{Stats: descStats, Missing: descMissing, Types: descTypes}
		if descAll {
			extras = assistant.AllExtras
		}

		out := cmd.OutOrStdout()
		failed := 0
		for i, path := range files {
			ctx, _ := logging.WithSession(cmd.Context())
			u, err := upload.Open(path)
			if err != nil {
				return err
			}

			// Machine-readable modes keep notices off stdout.
			var sink assistant.Sink = assistant.NewTextSink(out)
			if descJSON || descMarkdown {
				sink = assistant.NewTextSink(cmd.ErrOrStderr())
			}
			if len(files) > 1 && !descJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", i+1, len(files), path)
			}
			sess := assistant.NewSession(opt, sink, nil)
			if err := sess.Upload(ctx, u); err != nil {
				if len(files) == 1 {
					return &reportedError{err}
				}
				failed++
				continue
			}

			switch {
			case descJSON:
				b, err := utils.PrettyJSON(sess.Summary())
				if err != nil {
					return err
				}
				if err := emit(out, descOutput, path, ".summary.json", b); err != nil {
					return err
				}
			case descMarkdown:
				if err := emit(out, descOutput, path, ".summary.md", []byte(sess.Summary().Markdown())); err != nil {
					return err
				}
			default:
				sess.Report(extras)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed to load", failed, len(files))
		}
		return nil
	},
}

// emit prints b, or writes it under dir (or to the file dir names) when an
// output path is given.
func emit(out io.Writer, dest, src, suffix string, b []byte) error {
	if dest == "" {
		_, err := out.Write(append(b, '\n'))
		return err
	}
	path := dest
	if info, err := os.Stat(dest); (err == nil && info.IsDir()) || strings.HasSuffix(dest, string(os.PathSeparator)) {
		base := filepath.Base(src)
		path = filepath.Join(dest, strings.TrimSuffix(base, filepath.Ext(base))+suffix)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(out, "✓ Wrote summary to %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&descJSON, "json", false, "emit the summary as JSON")
	describeCmd.Flags().BoolVar(&descMarkdown, "markdown", false, "emit the prompt-ready Markdown report")
	describeCmd.Flags().StringVarP(&descOutput, "output", "o", "", "write --json/--markdown output to this file or directory")
	describeCmd.Flags().StringVar(&descDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe' (overrides config)")
	describeCmd.Flags().StringVar(&descSheetName, "sheet-name", "", "workbook sheet to read (default: first sheet)")
	describeCmd.Flags().IntVar(&descMaxRows, "max-rows", 0, "maximum data rows to load (0 = config or unlimited)")
	describeCmd.Flags().IntVar(&descHeadRows, "head", 0, "preview rows (default from config, 5)")
	describeCmd.Flags().BoolVar(&descStats, "stats", false, "show the statistical summary")
	describeCmd.Flags().BoolVar(&descMissing, "missing", false, "show the missing values analysis")
	describeCmd.Flags().BoolVar(&descTypes, "types", false, "show column data types")
	describeCmd.Flags().BoolVar(&descAll, "all", false, "show every optional section")
}
