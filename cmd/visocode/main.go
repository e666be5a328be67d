package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/internal/agent/core"
	"github.com/viso-study/visocode/internal/agent/telemetry"
	"github.com/viso-study/visocode/internal/capability"
	srv "github.com/viso-study/visocode/internal/server"
	"github.com/viso-study/visocode/internal/sink"
)

func main() {
	var cfgPath string
	root := &cobra.Command{Use: "visocode"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var codeFile string
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			if codeFile != "" {
				if _, err := os.Stat(codeFile); err != nil {
					return fmt.Errorf("code file %s: %w", codeFile, err)
				}
				question = fmt.Sprintf("Please analyze the code file '%s' and answer this question: %s", codeFile, question)
			}
			return runAsk(cmd.Context(), cfg, question)
		},
	}
	ask.Flags().StringVar(&codeFile, "code-file", "", "optional code file to analyze alongside the question")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("VISOCODE_HTTP_ADDR")
			}
			return srv.Run(serveAddr, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to server.address)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			cfg.LLM.APIKey = redact(cfg.LLM.APIKey)
			cfg.Tools.Icons.APIKey = redact(cfg.Tools.Icons.APIKey)
			cfg.Capability.SigningSecret = redact(cfg.Capability.SigningSecret)
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	root.AddCommand(ask, serve, configCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(ctx context.Context, cfg *config.Config, question string) error {
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	defer tele.Shutdown()

	cards, err := capability.SignedDefaultCards(cfg.Capability.SigningSecret)
	if err != nil {
		return err
	}
	registry, err := capability.NewRegistry(cards, cfg.Capability.SigningSecret, cfg.Capability.RequiredTools)
	if err != nil {
		return fmt.Errorf("building capability registry: %w", err)
	}

	logger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)
	caps, err := core.NewCapabilities(cfg, logger)
	if err != nil {
		return err
	}
	answerSink := sink.New(cfg.Storage.File)
	planner := core.NewPlannerFromConfig(cfg, log.New(os.Stderr, "[PLANNER] ", log.LstdFlags))

	orch, err := core.NewOrchestrator(cfg, logger, tele, registry, planner, caps, answerSink)
	if err != nil {
		return err
	}
	orch.SetClarificationInput(promptStdin)

	payload, err := orch.Run(ctx, question)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "answer persisted to %s\n", answerSink.Path())
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// promptStdin asks the user the follow-up question on the terminal.
func promptStdin(ctx context.Context, followUp string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n> ", followUp)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
