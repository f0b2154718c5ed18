package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/logger"
	"resume-matcher/internal/parser"
	"resume-matcher/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Print the text extracted from a PDF or DOCX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Print the fields parsed from a resume (or, with --jd, a job description)",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var parseAsJD bool

func init() {
	parseCmd.Flags().BoolVar(&parseAsJD, "jd", false, "Parse the file as a job description")

	rootCmd.AddCommand(extractCmd, parseCmd)
}

func extractFile(ctx context.Context, path string) (string, error) {
	kind, ok := parser.KindFromPath(path)
	if !ok {
		return "", types.NewUnsupportedTypeError(path)
	}
	extractor, err := bootstrap.NewExtractor(ctx, cfg, logger.Logger)
	if err != nil {
		return "", err
	}
	return extractor.ExtractText(ctx, path, kind)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := extractFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := extractFile(ctx, args[0])
	if err != nil {
		return err
	}

	model, err := parser.NewProseModel()
	if err != nil {
		return err
	}
	fieldParser := parser.NewFieldParser(model)

	var fields any
	if parseAsJD {
		fields = fieldParser.ParseJD(text)
	} else {
		fields = fieldParser.ParseResume(text)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fields)
}
