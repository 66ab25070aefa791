package cmd

import (
	"strings"
	"testing"
)

func TestScheduleAssistantTool(t *testing.T) {
	tool := scheduleAssistantTool()

	if tool.Name != "scheduleAssistant" {
		t.Errorf("expected tool name scheduleAssistant, got %s", tool.Name)
	}

	if !contains(tool.InputSchema.Required, "message") {
		t.Error("expected message to be a required argument")
	}
	for _, optional := range []string{"userId", "timezone"} {
		if _, ok := tool.InputSchema.Properties[optional]; !ok {
			t.Errorf("expected %s argument in schema", optional)
		}
		if contains(tool.InputSchema.Required, optional) {
			t.Errorf("expected %s to be optional", optional)
		}
	}
}

func TestScheduleAssistantTool_DescriptionMatchesCapabilities(t *testing.T) {
	tool := scheduleAssistantTool()
	desc := strings.ToLower(tool.Description)

	// The description must only promise what the registered tools can do:
	// reading events, conflict detection with free-slot suggestions, and
	// event creation. There are no update or delete tools.
	for _, capability := range []string{"conflict", "free slot", "create"} {
		if !strings.Contains(desc, capability) {
			t.Errorf("expected description to mention %q", capability)
		}
	}
	for _, absent := range []string{"update", "delete"} {
		if strings.Contains(desc, absent) {
			t.Errorf("description promises %q but no such tool is registered", absent)
		}
	}
}
