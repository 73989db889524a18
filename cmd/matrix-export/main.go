package main

import (
	"fmt"
	"os"

	commonlogger "wisefido-threshold/common/logger"
	"wisefido-threshold/internal/export"
	"wisefido-threshold/internal/matrix"
	"wisefido-threshold/internal/tagdelta"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var output string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "matrix-export",
		Short: "Export the threshold rule matrix and tag deltas to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := commonlogger.NewLogger(logLevel, "console", "matrix-export")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			data, err := export.GenerateRuleWorkbook(matrix.NewMatrix(logger), tagdelta.NewEngine())
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			logger.Info("Rule workbook exported",
				zap.String("output", output),
				zap.Int("bytes", len(data)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "threshold_rules.xlsx", "output file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}
