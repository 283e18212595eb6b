package main

import (
	"fmt"
	"os"

	"github.com/nanolog-go/nanolog"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		blockSize    int
		metadataPath string
		listMeta     bool
	)

	rootCmd := &cobra.Command{
		Use:   "nanolog-decoder <logFile> [max_messages]",
		Short: "Render a nanolog binary log file as text",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decode(args, blockSize, metadataPath, listMeta)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().IntVar(&blockSize, "block-size", 512, "on-disk block alignment")
	rootCmd.Flags().StringVar(&metadataPath, "metadata", "", "path to a metadata table file")
	rootCmd.Flags().BoolVar(&listMeta, "list-metadata", false, "list metadata entries instead of decoding records")

	if err := rootCmd.Execute(); err != nil {
		if _, ok := err.(invalidArgument); ok {
			fmt.Fprintln(os.Stderr, err)
			return -1
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type invalidArgument struct{ msg string }

func (e invalidArgument) Error() string { return e.msg }

func decode(args []string, blockSize int, metadataPath string, listMeta bool) error {
	logFile := args[0]
	maxMessages := -1
	if len(args) == 2 {
		n, err := parsePositiveInt(args[1])
		if err != nil {
			return invalidArgument{fmt.Sprintf("invalid max_messages %q: %v", args[1], err)}
		}
		maxMessages = n
	}

	var table *nanolog.MetadataTable
	if metadataPath != "" {
		f, err := os.Open(metadataPath)
		if err != nil {
			return fmt.Errorf("opening metadata table: %w", err)
		}
		table, err = nanolog.LoadMetadataTable(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("loading metadata table: %w", err)
		}
	}

	if listMeta {
		if table == nil {
			return invalidArgument{"--list-metadata requires --metadata"}
		}
		printMetadata(table)
		return nil
	}

	f, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	payload, err := nanolog.ReadBlocks(f, blockSize)
	if err != nil {
		return fmt.Errorf("reading log file: %w", err)
	}

	records := nanolog.DecodeStream(payload, nanolog.PassthroughDecompressor)
	if maxMessages >= 0 && len(records) > maxMessages {
		records = records[:maxMessages]
	}

	return nanolog.RenderLogfmt(os.Stdout, records, table)
}

func printMetadata(table *nanolog.MetadataTable) {
	fmt.Printf("%-8s %-40s %-8s %s\n", "id", "filename", "line", "format string")
	for _, e := range table.All() {
		fmt.Printf("%-8d %-40s %-8d %s\n", e.ID, e.File, e.Line, e.Format)
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a positive integer")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
