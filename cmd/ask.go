package cmd

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/assistant"
	"github.com/KaramelBytes/datalens-cli/internal/logging"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

var (
	askQuestion    string
	askModel       string
	askProvider    string
	askMaxTokens   int
	askTemp        float64
	askDryRun      bool
	askQuiet       bool
	askJSON        bool
	askPrintPrompt bool
	askPromptLimit int
	askBudgetLimit float64
	askOutputPath  string
	askOutputFmt   string
	askStream      bool
	askOllamaHost  string
	askTimeoutSec  int
	askSheetName   string
	askMaxRows     int
	askHeadRows    int
	askDelimiter   string
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question]",
	Short: "Ask a natural-language question about a CSV/XLSX/XLS file",
	Example: `  datalens ask sales.csv -q "What are the main trends?"
  datalens ask sales.csv "What's the average of revenue?" --stream
  datalens ask report.xlsx -q "Which region grew fastest?" --sheet-name Q3 --dry-run
  datalens ask sales.csv -q "Summarize" --provider ollama --model llama3:latest`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flag values stick between Execute calls in one process; reset the
		// ones that were not given in this run.
		if f := cmd.Flags(); f != nil {
			provided := map[string]bool{}
			f.Visit(func(fl *pflag.Flag) { provided[fl.Name] = true })
			if !provided["question"] {
				askQuestion = ""
			}
			if !provided["dry-run"] {
				askDryRun = false
			}
			if !provided["prompt-limit"] {
				askPromptLimit = 0
			}
			if !provided["budget-limit"] {
				askBudgetLimit = 0
			}
			if !provided["print-prompt"] {
				askPrintPrompt = false
			}
			if !provided["json"] {
				askJSON = false
			}
			if !provided["quiet"] {
				askQuiet = false
			}
		}
		question := askQuestion
		if question == "" && len(args) == 2 {
			question = args[1]
		}
		if strings.TrimSpace(question) == "" {
			return fmt.Errorf("a question is required: pass it with -q or as the second argument")
		}
		if askJSON {
			askQuiet = true
		}
		switch askOutputFmt {
		case "", "text", "markdown", "md", "json":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", askOutputFmt)
		}

		c := effectiveConfig()
		opt, err := sessionOptions(c, inputFlags{
			Delimiter: askDelimiter,
			SheetName: askSheetName,
			MaxRows:   askMaxRows,
			HeadRows:  askHeadRows,
		})
		if err != nil {
			return err
		}
		opt.PromptLimit = askPromptLimit

		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
		info := stdout
		if askQuiet {
			info = stderr
		}
		sink := &answerSink{Sink: assistant.NewTextSink(info), w: info}

		ctx, _ := logging.WithSession(cmd.Context())
		u, err := upload.Open(args[0])
		if err != nil {
			return err
		}
		// The completer is attached below, once provider and model are known.
		completer := &assistant.RuntimeCompleter{}
		sess := assistant.NewSession(opt, sink, completer)
		if err := sess.Upload(ctx, u); err != nil {
			return &reportedError{err}
		}

		prompt, err := sess.Prompt(question)
		if err != nil {
			return err
		}
		tokens := utils.CountTokens(prompt)
		breakdown := utils.TokenBreakdown(map[string]string{
			"system":   opt.SystemPrompt,
			"question": question,
		})
		if !askQuiet {
			fmt.Fprintf(info, "Tokens: total≈%d (system≈%d, question≈%d, data≈%d)\n",
				tokens+breakdown["system"], breakdown["system"], breakdown["question"], tokens-breakdown["question"])
		}

		provider := normalizeProvider(askProvider, c)
		model := selectModel(c, askModel, provider)
		maxTokens := askMaxTokens
		if maxTokens <= 0 {
			maxTokens = c.MaxTokens
		}
		if maxTokens <= 0 {
			maxTokens = 1000
		}
		temp := c.Temperature
		if cmd.Flags().Changed("temp") {
			temp = askTemp
		}

		if !askDryRun {
			if err := checkContextWindow(info, model, provider, tokens, maxTokens); err != nil {
				return err
			}
		}
		if cost, ok := ai.EstimateCostUSD(model, tokens, maxTokens); ok {
			if !askQuiet && cost > 0 {
				mi, _ := ai.LookupModel(model)
				fmt.Fprintf(info, "Estimated max cost: ~$%.4f (in %.5f/out %.5f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
			}
			if err := enforceBudget(cost, askBudgetLimit); err != nil {
				return err
			}
		}

		if askDryRun {
			sum := sha1.Sum([]byte(prompt))
			if !askQuiet {
				fmt.Fprintln(info, "\n--dry-run: no API call will be made. Prompt preview below --")
				fmt.Fprintf(info, "Request ID (dry-run): sim_%x\n", sum[:6])
			}
			fmt.Fprintln(stdout, prompt)
			return nil
		}
		if askPrintPrompt && !askQuiet {
			fmt.Fprintln(info, "\n--print-prompt: sending the following prompt --")
			fmt.Fprintln(info, prompt)
		}

		runtime, provider, err := buildRuntime(c, runtimeOptions{
			ProviderFlag: provider,
			OllamaHost:   askOllamaHost,
		})
		if err != nil {
			return err
		}
		completer.Runtime = runtime
		completer.Model = model
		completer.MaxTokens = maxTokens
		completer.Temperature = temp

		streamed := configureStreaming(completer, streamingOptions{
			Enabled:     askStream,
			Quiet:       askQuiet,
			Writer:      info,
			DeltaWriter: info,
		})
		// A streamed answer is already on screen; a quiet or JSON answer goes
		// to stdout below.
		sink.hide = streamed || askQuiet

		if !askQuiet {
			fmt.Fprintf(info, "⚙ Analyzing with %s model=%s (prompt tokens≈%d) ...\n", provider, model, tokens)
		}
		reqCtx, cancel := withTimeout(ctx, askTimeoutSec)
		defer cancel()
		answer, err := sess.Ask(reqCtx, question)
		if err != nil {
			if hint := providerHint(err, provider, model); hint != nil {
				return hint
			}
			return &reportedError{err}
		}
		if askQuiet && !askJSON {
			fmt.Fprintln(stdout, answer)
		}

		return formatAndWriteOutput(answer, outputOptions{
			JSON:         askJSON,
			Quiet:        askQuiet,
			File:         u.Name,
			Question:     question,
			Provider:     provider,
			Model:        model,
			MaxTokens:    maxTokens,
			Temperature:  temp,
			PromptTokens: tokens,
			OutputPath:   askOutputPath,
			OutputFormat: askOutputFmt,
			Streamed:     streamed,
			Writer:       stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question about the data")
	askCmd.Flags().StringVar(&askModel, "model", "", "override model (default from config, llama3-70b-8192)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "provider: groq|openrouter|ollama (default from config)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "max tokens for the answer (default from config, 1000)")
	askCmd.Flags().Float64Var(&askTemp, "temp", 0.5, "sampling temperature (default from config)")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "build the prompt and print it without calling the API")
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the prompt being sent to the API")
	askCmd.Flags().IntVar(&askPromptLimit, "prompt-limit", 0, "truncate the dataset summary to this many tokens before sending")
	askCmd.Flags().Float64Var(&askBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	askCmd.Flags().StringVar(&askOutputPath, "output", "", "optional path to write the answer (skipped in --dry-run)")
	askCmd.Flags().StringVar(&askOutputFmt, "format", "text", "output file format: text|markdown|json")
	askCmd.Flags().BoolVar(&askQuiet, "quiet", false, "print only the answer on stdout")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit the answer as JSON to stdout")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer if supported by the provider")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	askCmd.Flags().StringVar(&askSheetName, "sheet-name", "", "workbook sheet to read (default: first sheet)")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "maximum data rows to load (0 = config or unlimited)")
	askCmd.Flags().IntVar(&askHeadRows, "head", 0, "preview rows included in the prompt (default from config, 5)")
	askCmd.Flags().StringVar(&askDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
}
