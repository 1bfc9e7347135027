package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
)

var (
	modelsProvider string
	modelsJSON     bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models with context windows and pricing",
	Example: `  datalens models
  datalens models --provider groq --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := ""
		if modelsProvider != "" {
			provider = normalizeProvider(modelsProvider, nil)
		}
		list := ai.Models(provider)
		out := cmd.OutOrStdout()
		if modelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintf(out, "No models known for provider %q\n", provider)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tIN/1K\tOUT/1K")
		for _, mi := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\t%.5f\n", mi.Provider, mi.Name, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list models of this provider")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "emit the catalog as JSON")
}
