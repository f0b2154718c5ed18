package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"resume-matcher/internal/processor"
	"resume-matcher/internal/types"
)

// printRanking 打印排名表，列与 CSV 一致
func printRanking(w io.Writer, ranked []types.ScoreResult, details bool) error {
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No candidates scored.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "#")
	for _, col := range processor.CSVHeader {
		fmt.Fprintf(tw, "\t%s", col)
	}
	fmt.Fprintln(tw)
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			i+1, r.CandidateName, r.SuggestedRole,
			r.TotalScore, r.ATSScore, r.SkillMatchScore, r.EducationScore,
			r.MatchPriority)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !details {
		return nil
	}
	for i, r := range ranked {
		fmt.Fprintf(w, "\n[%d] %s  (%s)\n", i+1, r.CandidateName, r.Path)
		fmt.Fprintf(w, "  Skills:     %s\n", orDash(r.Skills))
		fmt.Fprintf(w, "  Education:  %s\n", orDash(r.Education))
		fmt.Fprintf(w, "  Experience: %s\n", orDash(r.Experience))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeCSVFile(path string, ranked []types.ScoreResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败: %w", err)
	}
	if err := processor.WriteCSV(f, ranked); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
