package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/patchsmith/patchsmith/pkg/builder"
	"github.com/patchsmith/patchsmith/pkg/changetracker"
	"github.com/patchsmith/patchsmith/pkg/config"
	"github.com/patchsmith/patchsmith/pkg/events"
	"github.com/patchsmith/patchsmith/pkg/history"
	"github.com/patchsmith/patchsmith/pkg/patch"
	"github.com/patchsmith/patchsmith/pkg/provider"
	"github.com/patchsmith/patchsmith/pkg/safety"
	"github.com/patchsmith/patchsmith/pkg/tools"
	"github.com/patchsmith/patchsmith/pkg/types"
	"github.com/patchsmith/patchsmith/pkg/webui"
)

var (
	buildPlanPath   string
	buildBundlePath string
	buildRequest    string
	buildMode       string
	buildFormat     string
	buildModel      string
	buildLane       string
	buildUIAddr     string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Execute a plan against the workspace",
	Long: `Build runs one builder turn: the plan and context bundle are sent to
the configured model, the response is parsed and validated, and the
resulting patches are applied to the current directory.

The plan file is the architect's JSON output:
  {"steps": [...], "target_files": [...], "create_files": [...]}

The bundle file carries the request plus write-scope policy:
  {"request": "...", "allow_write_paths": [...], "read_only_paths": [...]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild()
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildPlanPath, "plan", "p", "", "Path to the plan JSON file (required)")
	buildCmd.Flags().StringVarP(&buildBundlePath, "bundle", "b", "", "Path to the context bundle JSON file")
	buildCmd.Flags().StringVarP(&buildRequest, "request", "r", "", "Inline request text when no bundle file is given")
	buildCmd.Flags().StringVar(&buildMode, "mode", "", "Output protocol: tool_calls, patch_json, or freeform")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "patch_json payload format: search_replace or file_writes")
	buildCmd.Flags().StringVarP(&buildModel, "model", "m", "", "Model name to use with the LLM")
	buildCmd.Flags().StringVar(&buildLane, "lane", "", "Conversation lane to replay and record history on")
	buildCmd.Flags().StringVar(&buildUIAddr, "ui", "", "Serve the web UI on this address (e.g. :8844)")
	_ = buildCmd.MarkFlagRequired("plan")
}

func runBuild() error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	applyBuildFlags(cfg)

	plan, err := loadPlan(buildPlanPath)
	if err != nil {
		return err
	}
	bundle, err := loadBundle()
	if err != nil {
		return err
	}

	llm, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	registry := tools.NewDefaultRegistry()
	if err := tools.RegisterBuiltins(registry, root); err != nil {
		return err
	}

	bus := events.NewBus()
	if buildUIAddr != "" {
		go func() {
			if serveErr := webui.NewServer(bus, buildUIAddr).Start(); serveErr != nil {
				fmt.Fprintf(os.Stderr, "web ui stopped: %v\n", serveErr)
			}
		}()
	}

	opts := []builder.Option{
		builder.WithMode(types.RunMode(cfg.Mode)),
		builder.WithFormat(types.PatchFormat(cfg.Format)),
		builder.WithRegistry(registry),
		builder.WithEvents(bus),
		builder.WithTracker(changetracker.NewTracker(root)),
		builder.WithLimits(cfg.MaxSteps, cfg.MaxToolCalls),
		builder.WithInterpreterFallback(cfg.FallbackToInterpreter),
	}
	if buildLane != "" {
		opts = append(opts, builder.WithLane(history.NewFileLanes(root), buildLane))
	}

	runner := builder.NewRunner(llm, patch.NewApplier(root), safety.NewGuard(root), opts...)
	result, err := runner.Run(context.Background(), plan, bundle)
	if err != nil {
		return err
	}
	printRunResult(result)
	return nil
}

func applyBuildFlags(cfg *config.Config) {
	if buildMode != "" {
		cfg.Mode = buildMode
	}
	if buildFormat != "" {
		cfg.Format = buildFormat
	}
	if buildModel != "" {
		cfg.Model = buildModel
	}
}

func loadPlan(path string) (*types.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan types.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return &plan, nil
}

func loadBundle() (*types.ContextBundle, error) {
	if buildBundlePath == "" {
		return &types.ContextBundle{Request: buildRequest}, nil
	}
	data, err := os.ReadFile(buildBundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var bundle types.ContextBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	if buildRequest != "" {
		bundle.Request = buildRequest
	}
	return &bundle, nil
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return provider.NewOllamaProvider(cfg.Model)
	default:
		apiKey, err := provider.ResolveAPIKey(cfg.Provider)
		if err != nil {
			return nil, err
		}
		return provider.NewOpenAIProvider(cfg.Provider, cfg.Endpoint, apiKey, cfg.Model), nil
	}
}

func printRunResult(result *types.RunResult) {
	titler := cases.Title(language.Und)
	if result.ContextRequest != nil {
		fmt.Printf("%s: %s\n", titler.String("context requested"), result.ContextRequest.Reason)
		for _, q := range result.ContextRequest.Queries {
			fmt.Printf("  query: %s\n", q)
		}
		for _, f := range result.ContextRequest.Files {
			fmt.Printf("  file: %s\n", f)
		}
		return
	}
	fmt.Printf("%s: %s\n", titler.String("result"), result.FinalMessage)
	if result.ToolCallsExecuted > 0 {
		fmt.Printf("%s: %d\n", titler.String("tool calls executed"), result.ToolCallsExecuted)
	}
}
