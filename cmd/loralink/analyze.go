package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brewern5/LoRa-Research/internal/session"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <receiver-log>",
	Short: "Reconstruct transfer sessions from a receiver log",
	Long: `Reads a receiver observation log (SESSION_START, RX and SESSION_END
records) and reconstructs the per-session view: fragments received
versus expected, loss, integrity verdict and link quality statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open receiver log: %w", err)
	}
	defer f.Close()

	r := session.NewReconstructor()
	if _, err := r.ReadFrom(f); err != nil {
		return fmt.Errorf("failed to read receiver log: %w", err)
	}

	report := r.Report()

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d session(s), %d observation(s), %d malformed record(s)\n\n",
		report.RunID, len(report.Sessions), report.Observations, report.Malformed)

	for _, s := range report.Sessions {
		fmt.Fprintf(out, "Session %d (exp %d, %s, %d Hz, %d B)\n",
			s.SessionID, s.ExpID, s.Codec, s.SampleHz, s.TotalSize)
		fmt.Fprintf(out, "  fragments: %d/%d (%d lost, %.1f%%)\n",
			s.FragsReceived, s.FragsExpected, s.Loss, s.LossPercent)

		verdict := "crc failed"
		if s.CRCOK {
			verdict = "crc ok"
		}
		switch {
		case s.TimedOut:
			fmt.Fprintf(out, "  outcome:   timed out, %s\n", verdict)
		case !s.Closed:
			fmt.Fprintln(out, "  outcome:   never closed")
		case s.DurationMs != nil:
			fmt.Fprintf(out, "  outcome:   %s in %d ms\n", verdict, *s.DurationMs)
		default:
			fmt.Fprintf(out, "  outcome:   %s\n", verdict)
		}

		if s.RSSI != nil {
			fmt.Fprintf(out, "  rssi:      min %.1f / avg %.1f / max %.1f dBm\n",
				s.RSSI.Min, s.RSSI.Avg, s.RSSI.Max)
		}
		if s.SNR != nil {
			fmt.Fprintf(out, "  snr:       min %.1f / avg %.1f / max %.1f dB\n",
				s.SNR.Min, s.SNR.Avg, s.SNR.Max)
		}
		fmt.Fprintln(out)
	}

	return nil
}
