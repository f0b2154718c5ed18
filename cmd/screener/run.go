package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/logger"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen a ZIP of resumes against a PDF job description",
	Long:  "Save the uploads, unzip the resumes, score every PDF/DOCX entry against the job description, print the ranking and append it to the history.",
	RunE:  runScreening,
}

var (
	runJDFile     string
	runResumesZip string
	runCSVFile    string
	runDetails    bool
)

func init() {
	runCmd.Flags().StringVar(&runJDFile, "jd", "", "Job description PDF (required)")
	runCmd.Flags().StringVar(&runResumesZip, "resumes", "", "ZIP archive of PDF/DOCX resumes (required)")
	runCmd.Flags().StringVar(&runCSVFile, "csv", "", "Write the ranked table to this CSV file")
	runCmd.Flags().BoolVar(&runDetails, "details", false, "Print skills, education and experience for each candidate")
	_ = runCmd.MarkFlagRequired("jd")
	_ = runCmd.MarkFlagRequired("resumes")

	rootCmd.AddCommand(runCmd)
}

func runScreening(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.New(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer app.Close()
	ws := app.Storage.Workspace

	jdPath, err := saveLocalFile(ctx, runJDFile, ws.SaveJD)
	if err != nil {
		return err
	}
	zipPath, err := saveLocalFile(ctx, runResumesZip, ws.SaveResumeArchive)
	if err != nil {
		return err
	}
	resumePaths, err := ws.ExtractArchive(zipPath)
	if err != nil {
		return err
	}

	jd, err := app.Service.ProcessJD(ctx, jdPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job title:       %s\n", jd.JobTitle)
	fmt.Fprintf(out, "Required skills: %s\n\n", jd.RequiredSkills)

	record, err := app.Service.RunScreening(ctx, processor.ScreeningRequest{
		JDEmbedding:     jd.Embedding,
		JobTitle:        jd.JobTitle,
		ResumePaths:     resumePaths,
		JDText:          jd.Text,
		SkipUnsupported: true,
	})
	if err != nil {
		return err
	}

	ranked := processor.Rank(record.Results)
	if err := printRanking(out, ranked, runDetails); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSaved run %s (%s)\n", record.Timestamp, record.RunID)

	if runCSVFile != "" {
		return writeCSVFile(runCSVFile, ranked)
	}
	return nil
}

// saveLocalFile 把本地文件交给工作区保存
func saveLocalFile(ctx context.Context, path string, save func(context.Context, storage.UploadSource) (string, error)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()
	return save(ctx, storage.FromReader(filepath.Base(path), f))
}
