package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/probelab/deepscout/internal/logging"
	"github.com/probelab/deepscout/internal/research"
	"github.com/probelab/deepscout/internal/source"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	askLoops      int
	askQueries    int
	askTierFilter string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one research session from the terminal",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAsk(strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().IntVar(&askLoops, "loops", 0, "max research loops (default from config)")
	askCmd.Flags().IntVar(&askQueries, "queries", 0, "initial query count (default from config)")
	askCmd.Flags().StringVar(&askTierFilter, "quality", "any", "minimum source quality tier (any, medium, high)")
}

func runAsk(question string) {
	logging.Init(logging.Config{
		Format:    "console",
		Level:     "warn",
		Component: "deepscout",
	})

	cfg, err := loadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	orchestrator, err := buildOrchestrator(cfg, research.NopSink{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build research orchestrator")
	}
	if orchestrator == nil {
		fmt.Fprintln(os.Stderr, "Error: no language model configured (set DEEPSCOUT_LM_API_KEY)")
		os.Exit(1)
	}

	result := orchestrator.Run(context.Background(), research.Request{
		Question:          question,
		InitialQueryCount: askQueries,
		MaxLoops:          askLoops,
		MinTier:           source.ParseTier(askTierFilter),
	})

	fmt.Println(result.Answer)
	if len(result.Cited) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Cited {
			fmt.Printf("  [%d] %s\n      %s\n", src.Label, src.Title, src.URL)
		}
	}
	fmt.Printf("\n(%d loops, %d queries, %d sources, confidence %.2f)\n",
		result.Loops, result.TotalQueries, result.TotalSources, result.Confidence)
}
