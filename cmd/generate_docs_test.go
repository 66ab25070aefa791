package cmd

import (
	"strings"
	"testing"

	"github.com/chatplan/chatplan/internal/tools"
)

func TestGenerateToolsMarkdown(t *testing.T) {
	registry := tools.NewRegistry()
	if err := tools.RegisterCalendarTools(registry, nil, nil); err != nil {
		t.Fatalf("failed to register calendar tools: %v", err)
	}

	allTools := registry.Schemas()
	allTools = append(allTools, scheduleAssistantTool())

	markdown := generateToolsMarkdown(allTools)

	wantSections := []string{
		"# MCP Tools Reference",
		"### getCalendarEvents",
		"### createCalendarEvent",
		"### detectConflicts",
		"### scheduleAssistant",
	}
	for _, section := range wantSections {
		if !strings.Contains(markdown, section) {
			t.Errorf("generated markdown missing %q", section)
		}
	}

	// Required arguments must be marked as such
	if !strings.Contains(markdown, "`message` (required)") {
		t.Errorf("scheduleAssistant message argument not documented as required")
	}
	if !strings.Contains(markdown, "`title` (required)") {
		t.Errorf("createCalendarEvent title argument not documented as required")
	}
}

func TestGenerateToolMarkdownOptionalArgs(t *testing.T) {
	markdown := generateToolMarkdown(scheduleAssistantTool())

	if !strings.Contains(markdown, "`userId` (optional)") {
		t.Errorf("userId should be documented as optional, got:\n%s", markdown)
	}
	if !strings.Contains(markdown, "`timezone` (optional)") {
		t.Errorf("timezone should be documented as optional, got:\n%s", markdown)
	}
}
