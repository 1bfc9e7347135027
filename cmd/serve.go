package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/assistant"
	"github.com/KaramelBytes/datalens-cli/internal/web"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
	serveTimeout  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the describe and ask pipeline over HTTP",
	Example: `  datalens serve --addr :8080
  curl -F file=@sales.csv http://localhost:8080/api/describe
  curl -F file=@sales.csv -F question="What are the main trends?" http://localhost:8080/api/ask`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		opt, err := sessionOptions(c, inputFlags{})
		if err != nil {
			return err
		}

		runtime, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: serveProvider})
		if err != nil {
			return err
		}
		model := selectModel(c, serveModel, provider)
		completer := &assistant.RuntimeCompleter{
			Runtime:     runtime,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		}

		addr := serveAddr
		if addr == "" {
			addr = c.ServeAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		maxBytes := int64(c.MaxUploadMB) << 20

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info().Str("provider", provider).Str("model", model).Msg("starting server")
		srv := web.NewServer(web.Config{
			Addr:           addr,
			MaxUploadBytes: maxBytes,
			RequestTimeout: time.Duration(serveTimeout) * time.Second,
			Session:        opt,
			Completer:      completer,
			Logger:         logger,
		})
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "provider: groq|openrouter|ollama (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model used for /api/ask (default from config)")
	serveCmd.Flags().IntVar(&serveTimeout, "timeout-sec", 180, "per-request timeout in seconds")
}
