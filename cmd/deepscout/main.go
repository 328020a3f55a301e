package main

import (
	"fmt"
	"os"
	"time"

	"github.com/probelab/deepscout/internal/agent"
	"github.com/probelab/deepscout/internal/config"
	"github.com/probelab/deepscout/internal/llm"
	"github.com/probelab/deepscout/internal/research"
	"github.com/probelab/deepscout/internal/search"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "deepscout",
	Short:   "Deepscout - autonomous deep-research orchestrator",
	Long:    `Deepscout drives iterative rounds of web search over a question, scores and filters the evidence, and synthesizes a cited answer.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Deepscout %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings() (*config.Settings, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader.SetConfigPath(configPath)
	}
	return loader.Load()
}

// buildOrchestrator wires the research control plane: LM client, provider
// chain, dispatcher, and agents. Returns nil when no language model is
// configured.
func buildOrchestrator(cfg *config.Settings, sink research.ProgressSink) (*research.Orchestrator, error) {
	if !cfg.HasLM() {
		return nil, nil
	}

	lmClient, err := llm.NewProvider(cfg.LMAPIKey, cfg.LMDefaultModel, cfg.LMBaseURL, 2*time.Minute)
	if err != nil {
		return nil, err
	}

	httpClient := search.NewHTTPClient(cfg.PerProviderTimeout, cfg.HTTPMaxConnections)
	retry := search.RetryConfig{MaxRetries: cfg.PerProviderRetries}

	// Priority order of the fallback chain; unconfigured providers are
	// excluded at dispatcher construction.
	chain := []search.Provider{
		search.NewGroundedProvider(lmClient, cfg.LMDefaultModel, cfg.PerProviderTimeout),
		search.NewGoogleProvider(cfg.GoogleAPIKey, cfg.GoogleCSEID, "", httpClient, cfg.PerProviderTimeout, retry),
		search.NewSearchAPIProvider(cfg.SearchAPIKey, "", httpClient, cfg.PerProviderTimeout, retry),
		search.NewDuckDuckGoProvider("", httpClient, cfg.PerProviderTimeout, retry),
		search.NewKnowledgeProvider(lmClient, cfg.LMDefaultModel, cfg.PerProviderTimeout),
	}

	dispatcher := search.NewDispatcher(chain, search.DispatcherConfig{
		PerQueryLimit:       cfg.PerQueryLimit,
		ProviderConcurrency: cfg.ProviderConcurrency,
		PerProviderTimeout:  cfg.PerProviderTimeout,
	})

	return research.NewOrchestrator(
		cfg,
		dispatcher,
		agent.NewPlanner(lmClient, cfg.LMDefaultModel),
		agent.NewReflector(lmClient, cfg.LMDefaultModel),
		agent.NewFinalizer(lmClient, cfg.LMDefaultModel),
		sink,
	), nil
}
