package cmd

import (
	"encoding/json"
	"os"

	"github.com/loteraa/verifier/src/utils/analyzer"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Print the structure summary of a local CSV or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		f, err := os.Open(args[0])
		if err != nil {
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return
		}

		summary, err := analyzer.AnalyzeReader(f, info.Size(), info.Name())
		if err != nil {
			return
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}
