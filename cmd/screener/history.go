package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"resume-matcher/internal/logger"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past screening runs or show one run's ranking",
	RunE:  runHistory,
}

var (
	historyRun     string
	historyCSVFile string
	historyDetails bool
)

func init() {
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Timestamp or run ID of the run to show")
	historyCmd.Flags().StringVar(&historyCSVFile, "csv", "", "Write the selected run's ranking to this CSV file")
	historyCmd.Flags().BoolVar(&historyDetails, "details", false, "Print skills, education and experience for each candidate")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := storage.NewStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.History.Load(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if historyRun == "" {
		if historyCSVFile != "" {
			return fmt.Errorf("--csv requires --run")
		}
		return printRuns(cmd, records)
	}

	record, ok := findRun(records, historyRun)
	if !ok {
		return fmt.Errorf("no run matches %q", historyRun)
	}
	fmt.Fprintf(out, "Run %s  %s\n\n", record.Timestamp, runLabel(record))

	ranked := processor.Rank(record.Results)
	if err := printRanking(out, ranked, historyDetails); err != nil {
		return err
	}
	if historyCSVFile != "" {
		return writeCSVFile(historyCSVFile, ranked)
	}
	return nil
}

func printRuns(cmd *cobra.Command, records []types.HistoryRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No screening runs yet.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tCANDIDATES\tJOB")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Timestamp, len(r.Results), runLabel(r))
	}
	return tw.Flush()
}

// findRun 按时间戳或运行ID查找，时间戳重复时取最早的一条
func findRun(records []types.HistoryRecord, key string) (types.HistoryRecord, bool) {
	for _, r := range records {
		if r.Timestamp == key || r.RunID.String() == key {
			return r, true
		}
	}
	return types.HistoryRecord{}, false
}

// runLabel API 写入的标题，或命令行写入的岗位全文首行
func runLabel(r types.HistoryRecord) string {
	if r.JDTitle != "" {
		return r.JDTitle
	}
	text := strings.TrimSpace(r.JDText)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return tracing.TruncateString(strings.TrimSpace(text), 60)
}
