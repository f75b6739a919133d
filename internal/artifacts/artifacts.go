// Package artifacts renders the synthesized access-request commands as
// runnable scripts and a manual checklist.
package artifacts

import (
	"fmt"
	"strings"

	"modelscout/internal/domain"
)

type Artifact struct {
	Name    string
	Content string
}

type Options struct {
	Region        string
	Justification string
}

// Generate renders one shell script, one batch script, and a manual-steps
// document for the given command groups. An empty group list yields
// scripts that state there is nothing to request.
func Generate(groups []domain.CommandGroup, opts Options) []Artifact {
	return []Artifact{
		{Name: "request-model-access.sh", Content: shellScript(groups, opts, false)},
		{Name: "request-model-access-dry-run.sh", Content: shellScript(groups, opts, true)},
		{Name: "request-model-access.bat", Content: batchScript(groups, opts)},
		{Name: "MANUAL-STEPS.md", Content: manualSteps(groups, opts)},
	}
}

func shellScript(groups []domain.CommandGroup, opts Options, dryRun bool) string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("set -euo pipefail\n\n")
	fmt.Fprintf(&b, "# Access requests for region %s.\n", opts.Region)
	if len(groups) == 0 {
		b.WriteString("echo \"nothing to request\"\n")
		return b.String()
	}
	if dryRun {
		b.WriteString("# Dry run: prints each command without executing it.\n")
	}
	for _, g := range groups {
		fmt.Fprintf(&b, "\n# %s (%d model(s))\n", g.Provider, len(g.ModelIDs))
		if dryRun {
			fmt.Fprintf(&b, "echo %q\n", g.Command)
		} else {
			b.WriteString(g.Command + "\n")
		}
	}
	return b.String()
}

func batchScript(groups []domain.CommandGroup, opts Options) string {
	var b strings.Builder
	b.WriteString("@echo off\n")
	fmt.Fprintf(&b, "rem Access requests for region %s.\n", opts.Region)
	if len(groups) == 0 {
		b.WriteString("echo nothing to request\n")
		return b.String()
	}
	for _, g := range groups {
		fmt.Fprintf(&b, "\nrem %s\n", g.Provider)
		b.WriteString(g.Command + "\n")
	}
	return b.String()
}

func manualSteps(groups []domain.CommandGroup, opts Options) string {
	var b strings.Builder
	b.WriteString("# Manual access-request steps\n\n")
	fmt.Fprintf(&b, "Region: `%s`\n\n", opts.Region)
	if len(groups) == 0 {
		b.WriteString("Every catalog model is already accessible. Nothing to do.\n")
		return b.String()
	}
	b.WriteString("Run the commands below, or use the console model-access page\n")
	b.WriteString("to request each family by hand.\n")
	for i, g := range groups {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, g.Provider)
		for _, id := range g.ModelIDs {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		fmt.Fprintf(&b, "\n```sh\n%s\n```\n", g.Command)
	}
	if opts.Justification != "" {
		fmt.Fprintf(&b, "\nJustification used: %s\n", opts.Justification)
	}
	return b.String()
}
