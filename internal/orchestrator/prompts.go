package orchestrator

import (
	_ "embed"
	"strings"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/core"
)

//go:embed prompts/directive.md
var directiveInstructions string

// systemMessage assembles the request-time instructions. It is never stored in history.
func (o *Orchestrator) systemMessage(a agent.Agent, workingDir string) (core.Message, bool) {
	var parts []string

	if o.applier != nil {
		parts = append(parts, strings.TrimSpace(directiveInstructions))
	}
	if o.opts.SystemPrompt != "" {
		parts = append(parts, o.opts.SystemPrompt)
	}
	if a.SystemPrompt != "" {
		parts = append(parts, a.SystemPrompt)
	}
	if workingDir != "" {
		parts = append(parts, "You are working in the directory: "+workingDir)
	}

	if len(parts) == 0 {
		return core.Message{}, false
	}
	return core.SystemMessage(strings.Join(parts, "\n\n")), true
}
