package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatXML  = "xml"
	formatJSON = "json"
)

func newSnapshotCmd() *cobra.Command {
	var (
		format   string
		navigate string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the reference snapshot of the page",
		Long: `Takes a structural snapshot and prints its refs. Refs are minted e0, e1, ...
in document order and can be passed to other commands as ref=e3 while the page
is unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatText, formatXML, formatJSON:
			default:
				return fmt.Errorf("unknown format %q (want text, xml or json)", format)
			}
			return withSession(cmd, func(ctx context.Context, s Session) error {
				if navigate != "" {
					if err := s.Navigate(ctx, navigate); err != nil {
						return err
					}
				}
				snap, err := s.Snapshot(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch format {
				case formatXML:
					return renderSnapshotXML(out, snap)
				case formatJSON:
					// The screenshot is large and has its own command.
					trimmed := *snap
					trimmed.Screenshot = ""
					return printJSON(out, &trimmed)
				default:
					return renderSnapshotText(out, snap)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, xml or json")
	cmd.Flags().StringVar(&navigate, "navigate", "", "load this URL first")
	return cmd
}

func newScreenshotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture a PNG screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s Session) error {
				img, err := s.Screenshot(ctx)
				if err != nil {
					return err
				}
				if output == "" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), img)
					return err
				}
				data, err := base64.StdEncoding.DecodeString(img)
				if err != nil {
					return fmt.Errorf("screenshot is not valid base64: %w", err)
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write screenshot: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the PNG to this file instead of printing base64")
	return cmd
}

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <script>",
		Short: "Evaluate a JavaScript expression in the page and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s Session) error {
				raw, err := s.Evaluate(ctx, args[0])
				if err != nil {
					return err
				}
				if len(raw) == 0 {
					raw = []byte("null")
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			})
		},
	}
}
