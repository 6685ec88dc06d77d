package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/sanisideup/jira-workspace-sync/pkg/workflow"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

// outputJSON writes v to stdout as indented JSON
func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// openStore opens the workspace file named by the config
func openStore() (*workspace.FileStore, error) {
	path, err := cfg.WorkspacePath()
	if err != nil {
		return nil, err
	}
	store, err := workspace.OpenFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace %s: %w", path, err)
	}
	return store, nil
}

// phaseBars renders workflow progress with one bar per phase. It is a no-op
// with --json or --no-progress.
type phaseBars struct {
	labels  map[string]string
	phase   string
	current *progressbar.ProgressBar
}

func newPhaseBars(labels map[string]string) *phaseBars {
	return &phaseBars{labels: labels}
}

// Report is a workflow.ProgressFunc
func (p *phaseBars) Report(ev workflow.Progress) {
	if jsonOutput || noProgress || ev.Total <= 0 {
		return
	}
	if ev.Phase != p.phase || p.current == nil {
		p.Finish()
		label, ok := p.labels[ev.Phase]
		if !ok {
			label = ev.Phase
		}
		p.phase = ev.Phase
		p.current = progressbar.NewOptions(ev.Total,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(15),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.current.Set(ev.Current)
}

// Finish completes the current bar, if any
func (p *phaseBars) Finish() {
	if p.current == nil {
		return
	}
	_ = p.current.Finish()
	fmt.Fprintln(os.Stderr)
	p.current = nil
}

func printWarnings(warnings []workflow.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Printf("\nWarnings (%d):\n", len(warnings))
	for _, w := range warnings {
		fmt.Printf("  ! %s\n", w)
	}
}
