package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/workflow"
)

var (
	importSpace       string
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import <project-key>...",
	Short: "Import Jira projects into the workspace",
	Long: `Import the statuses and issues of one or more Jira projects into workspace
spaces. Each project goes to the space previously imported from it, or to a
new space named after the project, unless --space names one target space.

Jira statuses become linked workspace statuses; a status already linked is
reused, so re-importing does not duplicate statuses. A project that fails is
reported and does not stop the others.`,
	Example: `  jws import MA
  jws import MA WEB OPS --concurrency 5
  jws import MA WEB --space "Everything"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importSpace, "space", "s", "", "import every project into this space (id or name)")
	importCmd.Flags().IntVarP(&importConcurrency, "concurrency", "c", 0, "projects fetched in parallel (default from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}

	opts := workflow.ImportOptions{
		Concurrency: importConcurrency,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = cfg.ImportConcurrency
	}
	for _, key := range args {
		opts.ProjectKeys = append(opts.ProjectKeys, strings.ToUpper(key))
	}
	if importSpace != "" {
		space, err := store.Space(ctx, importSpace)
		if err != nil {
			return fmt.Errorf("space %q: %w", importSpace, err)
		}
		opts.TargetSpaceID = space.ID
	}

	bars := newPhaseBars(map[string]string{
		"fetching":  "Fetching projects...",
		"importing": "Importing...",
	})
	opts.Progress = bars.Report

	result, err := workflow.RunImport(ctx, tracker, store, opts)
	bars.Finish()
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("✓ %s\n", result.Summary())
	fmt.Printf("  %d tasks, %d new statuses, %d new sprints\n", result.TasksImported, result.StatusesImported, result.SprintsImported)
	if len(result.SpaceIDs) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nPROJECT\tSPACE")
		for _, key := range opts.ProjectKeys {
			if id, ok := result.SpaceIDs[key]; ok {
				fmt.Fprintf(w, "%s\t%s\n", key, id)
			}
		}
		w.Flush()
	}
	printWarnings(result.Warnings)

	if len(result.ProjectErrors) > 0 && result.ProjectsImported == 0 {
		return fmt.Errorf("no project imported: %w", result.ProjectErrors[0].Err)
	}
	return nil
}
