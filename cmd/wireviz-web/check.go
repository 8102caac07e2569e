package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wireviz-web/internal/config"
	"wireviz-web/internal/infra/wireviz"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the rendering engine is runnable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if v := os.Getenv("WIREVIZ_BIN"); v != "" {
			cfg.Engine.Path = v
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		version, err := wireviz.New(cfg).Version(ctx)
		if err != nil {
			return fmt.Errorf("engine %q not runnable: %w", cfg.Engine.Path, err)
		}
		fmt.Printf("engine %s: %s\n", cfg.Engine.Path, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
