package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/allowlist"
	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/config"
	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/reconcile"
	"github.com/sanisideup/jira-workspace-sync/pkg/secrets"
	"github.com/sanisideup/jira-workspace-sync/pkg/telemetry"
	"github.com/sanisideup/jira-workspace-sync/pkg/workflow"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

// readRetryBudget bounds retries of discovery reads when retry_reads is set
const readRetryBudget = 30 * time.Second

var (
	// Global flags
	cfgFile    string
	jsonOutput bool
	verbose    bool
	noProgress bool

	// Global variables
	cfg              *config.Config
	tracker          *jira.Tracker
	allowlistChecker *allowlist.Checker
)

// Exit codes
const (
	exitOK         = 0
	exitAuth       = 1
	exitValidation = 2
	exitAPI        = 3
	exitConfig     = 4
	exitCancelled  = 130
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jws",
	Short: "Sync workspace spaces and sprints with Jira Cloud",
	Long: `jws moves planning data between a local workspace and Jira Cloud.

It imports Jira projects (statuses and issues) into workspace spaces, and
exports a space or sprint folder to Jira as a project with a scrum board,
sprints and issues in their mapped statuses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// rootPreRun loads config and wires the tracker before any subcommand runs.
// It is attached in init because it refers to rootCmd through commandPath.
func rootPreRun(cmd *cobra.Command, args []string) error {
	if verbose {
		logging.SetupLogger(os.Stderr, logging.LevelDebug)
	}

	allowlistChecker = allowlist.NewChecker()
	if name := commandPath(cmd); name != "help" && name != "version" {
		if err := allowlistChecker.Check(name); err != nil {
			return err
		}
	}

	if !needsConfig(cmd) {
		return nil
	}

	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromPath(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'jws configure' to set up your credentials", err)
	}
	if cfg.LogLevel != "" && !verbose && os.Getenv("LOG_LEVEL") == "" {
		logging.SetupLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	}

	if err := telemetry.Init(cmd.Context(), cfg.Telemetry || telemetry.EnabledFromEnv()); err != nil {
		logging.Warn("telemetry disabled", "error", err)
	}

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	opts := jira.Options{StoryPointsField: cfg.StoryPointsField()}
	if cfg.RetryReads {
		opts.ReadRetry = readRetryBudget
	}
	tracker = jira.NewTracker(client.New(creds), opts)
	logging.Debug("configured", "domain", cfg.Domain, "email", logging.MaskSensitive(cfg.Email))
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Exit codes:
//   - 0: Success
//   - 1: Authentication failure
//   - 2: Validation error (bad input, unmapped statuses, taken project key)
//   - 3: API error
//   - 4: Configuration or workspace storage error
//   - 130: Cancelled
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Response != nil {
			fmt.Fprintln(os.Stderr, "Jira says:", apiErr.Messages())
		}
		os.Exit(getExitCode(err))
	}
}

// run executes one command line and flushes telemetry, also when the
// command fails
func run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := telemetry.Shutdown(flushCtx); serr != nil {
		logging.Warn("telemetry flush failed", "error", serr)
	}
	return err
}

// commandPath names cmd the way the allowlist does, e.g. "statuses map"
func commandPath(cmd *cobra.Command) string {
	path := strings.TrimPrefix(cmd.CommandPath(), rootCmd.Name())
	return strings.TrimSpace(path)
}

// needsConfig reports whether cmd talks to Jira
func needsConfig(cmd *cobra.Command) bool {
	switch commandPath(cmd) {
	case "configure", "version", "help", "", "allowlist", "allowlist status", "allowlist commands", "allowlist check":
		return false
	}
	return true
}

// resolveCredentials fills the API token from the secrets store when the
// config keeps it there
func resolveCredentials(c *config.Config) (creds models.Credentials, err error) {
	creds = c.Credentials()
	if !c.UseKeyring {
		return creds, nil
	}
	store := secrets.NewStore(secrets.ParseBackend(c.KeyringBackend))
	creds.APIToken, err = store.Token(c.Email)
	if err != nil {
		return creds, fmt.Errorf("failed to load API token from %s: %w", store.GetBackend(), err)
	}
	return creds, nil
}

// getExitCode determines the appropriate exit code based on the error type
func getExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var stepErr *workflow.StepError
	if errors.As(err, &stepErr) {
		switch stepErr.Kind {
		case workflow.KindCancelled:
			return exitCancelled
		case workflow.KindValidation:
			return exitValidation
		case workflow.KindStorage:
			return exitConfig
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.Is(err, config.ErrNotConfigured), errors.Is(err, secrets.ErrNotFound):
		return exitConfig
	case errors.Is(err, reconcile.ErrUnmappedStatus),
		errors.Is(err, jira.ErrInvalidProjectKey),
		errors.Is(err, jira.ErrProjectKeyTaken),
		errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, allowlist.ErrBlocked):
		return exitValidation
	}

	switch code := client.StatusCodeOf(err); {
	case code == 401 || code == 403:
		return exitAuth
	case code == 400 || code == 404:
		return exitValidation
	case code != 0:
		return exitAPI
	}

	if errors.Is(err, client.ErrTimeout) {
		return exitAPI
	}
	if stepErr != nil {
		switch stepErr.Kind {
		case workflow.KindConnection:
			return exitAuth
		case workflow.KindDiscovery, workflow.KindRemoteMutation:
			// network failures carry no HTTP status
			return exitAPI
		}
	}
	if strings.Contains(err.Error(), "config") {
		return exitConfig
	}
	return exitAuth
}

func init() {
	rootCmd.PersistentPreRunE = rootPreRun

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jws/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")
}
