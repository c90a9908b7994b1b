package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/retryguard/internal/control"
	"github.com/vietddude/retryguard/internal/core/domain"
	redisclient "github.com/vietddude/retryguard/internal/infra/redis"
	"github.com/vietddude/retryguard/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect, lint and publish retry rules",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Check a rule document for problems the runtime would ignore",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesLint,
}

var rulesPublishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a rule document to Redis and bump its version",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesPublish,
}

var rulesEvalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Dry-run the rules against a described failure",
	RunE:  runRulesEval,
}

var evalOpts struct {
	file         string
	class        string
	errorClass   string
	message      string
	args         string
	limitReached bool
	attempt      int
}

func init() {
	rulesEvalCmd.Flags().StringVar(&evalOpts.file, "file", "", "rule document (default: configured source)")
	rulesEvalCmd.Flags().StringVar(&evalOpts.class, "class", "", "job class name")
	rulesEvalCmd.Flags().StringVar(&evalOpts.errorClass, "error-class", "", "exception class name")
	rulesEvalCmd.Flags().StringVar(&evalOpts.message, "message", "", "exception message")
	rulesEvalCmd.Flags().StringVar(&evalOpts.args, "args", "[]", "job arguments as a JSON array")
	rulesEvalCmd.Flags().BoolVar(&evalOpts.limitReached, "limit-reached", false, "job reached its retry limit")
	rulesEvalCmd.Flags().IntVar(&evalOpts.attempt, "attempt", 0, "current retry attempt")

	rulesCmd.AddCommand(rulesLintCmd, rulesPublishCmd, rulesEvalCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesLint(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	problems, err := rules.Lint(doc)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(cmd.OutOrStdout(), "- "+p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}

func runRulesPublish(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	// Refuse documents the runtime could not read at all.
	if _, err := rules.ParseDocument(doc); err != nil {
		return err
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	version, err := redisclient.NewRuleStore(client, cfg.Rules.Key).Publish(cmd.Context(), doc)
	if err != nil {
		return err
	}
	slog.Info("Rules published", "key", cfg.Rules.Key, "version", version)
	return nil
}

func runRulesEval(cmd *cobra.Command, args []string) error {
	var jobArgs []any
	if err := json.Unmarshal([]byte(evalOpts.args), &jobArgs); err != nil {
		return fmt.Errorf("--args must be a JSON array: %w", err)
	}

	source, cleanup, err := evalSource(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	job := evalJob{
		name:         evalOpts.class,
		limitReached: evalOpts.limitReached,
		attempt:      evalOpts.attempt,
	}
	failure := &domain.Exception{Class: evalOpts.errorClass, Message: evalOpts.message}

	action, actionArgs, err := rules.NewEngine(source).Evaluate(cmd.Context(), job, failure, jobArgs)
	if err != nil {
		return err
	}

	encoded, _ := json.Marshal(actionArgs)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ACTION\t%s\n", action)
	_, _ = fmt.Fprintf(w, "ARGS\t%s\n", encoded)
	return w.Flush()
}

func evalSource(ctx context.Context) (rules.Source, func(), error) {
	if evalOpts.file != "" {
		doc, err := os.ReadFile(evalOpts.file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		list, err := rules.ParseDocument(doc)
		if err != nil {
			return nil, nil, err
		}
		for i, r := range list {
			if len(r.Issues()) > 0 {
				slog.Warn("Rule normalized", "index", i, "issues", strings.Join(r.Issues(), "; "))
			}
		}
		return rules.Static(list), func() {}, nil
	}

	cfg := loadConfig()
	var client *redisclient.Client
	if cfg.Rules.File == "" {
		var err error
		client, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
	}
	cache := rules.NewCache(control.RuleLoader(cfg.Rules, client), cfg.Rules.CheckInterval)
	return cache, func() {
		if client != nil {
			_ = client.Close()
		}
	}, nil
}

// evalJob is a job described on the command line.
type evalJob struct {
	name         string
	limitReached bool
	attempt      int
}

func (j evalJob) Name() string            { return j.name }
func (j evalJob) RetryLimitReached() bool { return j.limitReached }
func (j evalJob) RetryAttempt() int       { return j.attempt }
