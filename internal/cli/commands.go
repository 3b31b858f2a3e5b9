package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xab-mack/dosguard/internal/config"
	"github.com/xab-mack/dosguard/internal/engine"
	"github.com/xab-mack/dosguard/internal/model"
	"github.com/xab-mack/dosguard/internal/report"
	"github.com/xab-mack/dosguard/internal/tui"
)

func AddCommands(root *cobra.Command) {
	root.AddCommand(newScanCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newRulesCmd())
}

func newScanCmd() *cobra.Command {
	var (
		format        string
		outputFile    string
		failOn        string
		configPath    string
		workers       int
		useTUI        bool
		baseline      string
		writeBaseline string
	)
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan contracts for denial-of-service patterns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			var cfg config.Config
			var err error
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, _, err = config.Load(path)
			}
			if err != nil {
				return err
			}

			eng := engine.New(cfg)
			result, err := eng.Scan(cmd.Context(), model.ScanRequest{
				Path:         path,
				Workers:      workers,
				ConfigPath:   configPath,
				BaselinePath: baseline,
			})
			if err != nil {
				return err
			}

			if useTUI {
				return tui.Run(result.Findings)
			}
			if err := writeOutput(cmd, result, format, outputFile); err != nil {
				return err
			}
			if writeBaseline != "" {
				if err := engine.WriteBaseline(writeBaseline, result.Findings); err != nil {
					return err
				}
			}
			if failOn != "" {
				threshold := model.ParseSeverity(failOn)
				for _, f := range result.Findings {
					if model.SeverityGTE(f.Severity, threshold) {
						return fmt.Errorf("fail-on threshold met: %s", f.Severity)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table|json|sarif")
	cmd.Flags().StringVarP(&outputFile, "out", "o", "", "Write report to file instead of stdout")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero if a finding of this severity or higher exists (low|medium|high)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Explicit config file path")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel analysis workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Browse findings interactively")
	cmd.Flags().StringVar(&baseline, "baseline", "", "Suppress findings recorded in this baseline file")
	cmd.Flags().StringVar(&writeBaseline, "write-baseline", "", "Write finding fingerprints to this baseline file")
	return cmd
}

func writeOutput(cmd *cobra.Command, result *model.ScanResult, format, outputFile string) error {
	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(result, "", "  ")
	case "sarif":
		data, err = report.ToSARIF(&report.Report{
			Findings:    result.Findings,
			Summary:     result.Summary,
			Diagnostics: result.Diagnostics,
		})
	default:
		renderTable(cmd, result)
		return nil
	}
	if err != nil {
		return err
	}
	if outputFile != "" {
		return os.WriteFile(outputFile, data, 0o644)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func renderTable(cmd *cobra.Command, result *model.ScanResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Findings: %d (high=%d medium=%d low=%d, elapsed %s)\n",
		len(result.Findings),
		result.Summary[model.SeverityHigh],
		result.Summary[model.SeverityMedium],
		result.Summary[model.SeverityLow],
		result.Elapsed)
	for _, f := range result.Findings {
		fmt.Fprintf(out, "- %s [%s] %s %s.%s:%d %s (mitigation: %s)\n",
			f.RuleID, f.Severity, f.File, f.Contract, f.Function, f.Line, f.Message, f.Mitigation)
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(out, "! %s %s %s\n", d.Kind, d.File, d.Message)
	}
}

func newInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a " + config.FileName + " in the target directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = "."
			}
			path, err := config.Default().Write(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write the config file to")
	return cmd
}
