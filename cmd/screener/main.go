// Package main 命令行筛选工具：上传岗位描述和简历压缩包，打印排名并写入历史
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resume-matcher/internal/config"
	"resume-matcher/internal/logger"
)

var (
	configPath string
	verbose    bool

	cfg     *config.Config
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "Resume screening CLI",
	Long:          "Rank resumes from a ZIP archive against a PDF job description and keep a history of past runs.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logCfg := logger.Config{
			Level:      cfg.Logger.Level,
			Format:     "pretty",
			TimeFormat: cfg.Logger.TimeFormat,
			File:       cfg.Logger.File,
		}
		if !verbose {
			logCfg.Level = "warn"
		}
		logFile, err = logger.Init(logCfg)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")
}

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
