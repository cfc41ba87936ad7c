// Command trackscan extracts tracking numbers from text offline.
//
//	trackscan manifest.txt
//	pbpaste | trackscan --summary
//	trackscan --json label.txt
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/tracking"
)

var version = "dev"

type options struct {
	json       bool
	summary    bool
	reviewOnly bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "trackscan [file]",
		Short: "Extract carrier tracking numbers from text",
		Long: `trackscan finds carrier tracking numbers in a file or stdin and prints
each one with its carrier and confidence.

Examples:
  # Scan a manifest
  trackscan manifest.txt

  # Scan the clipboard and print the carrier mix only
  pbpaste | trackscan --summary

  # Machine-readable output
  trackscan --json label.txt`,
		Version:      version,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return run(in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print candidates as JSON")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print the carrier mix only")
	cmd.Flags().BoolVar(&opts.reviewOnly, "review", false, "print only candidates that need a manual check")
	return cmd
}

func run(in io.Reader, out io.Writer, opts options) error {
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	found := tracking.Extract(string(text))
	if opts.reviewOnly {
		kept := found[:0]
		for _, p := range found {
			if p.NeedsReview() {
				kept = append(kept, p)
			}
		}
		found = kept
	}

	switch {
	case opts.summary:
		if len(found) == 0 {
			_, err = fmt.Fprintln(out, "no tracking numbers detected")
			return err
		}
		_, err = fmt.Fprintln(out, tracking.SummarizeParsed(found))
		return err
	case opts.json:
		if found == nil {
			found = []domain.ParsedTrackingNumber{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	if len(found) == 0 {
		_, err = fmt.Fprintln(out, "no tracking numbers detected")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACKING NUMBER\tCARRIER\tCONFIDENCE")
	for _, p := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.TrackingNumber, p.Carrier, p.Confidence)
	}
	return tw.Flush()
}
