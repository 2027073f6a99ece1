package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/archive"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

func convertCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert [chat.jsonl|chat.jsonl.zst]",
		Short: "Convert a chat dump to readable text",
		Long: `Convert a chat dump written by "download" to one readable line per
chat message. Reads stdin when no file is given or the file is "-".
Lines that are not valid JSON are reported on stderr and skipped.

Examples:
  # Print a dump
  ytchat-dl convert chat.jsonl

  # Convert a compressed dump into a file
  ytchat-dl convert -o chat.txt chat.jsonl.zst`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := archive.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening dump: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			var out io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			lines, bad, err := convertDump(in, out, os.Stderr)
			if err != nil {
				return err
			}
			logger.Debug("conversion complete", zap.Int("lines", lines), zap.Int("bad", bad))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

// convertDump writes the readable form of every action in in to out. Bad
// lines are reported to errOut.
func convertDump(in io.Reader, out, errOut io.Writer) (lines, bad int, err error) {
	w := bufio.NewWriter(out)
	err = archive.ReadActions(in, func(a youtube.Action) error {
		for _, line := range youtube.FormatLines(a) {
			if _, err := w.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("writing line: %w", err)
			}
			lines++
		}
		return nil
	}, func(line string, _ error) {
		bad++
		fmt.Fprintf(errOut, "[BAD LINE] %s\n", line)
	})
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	return lines, bad, err
}
