package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBootstrap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capabilities.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bootstrap file: %v", err)
	}
	return path
}

func TestLoadBootstrap(t *testing.T) {
	path := writeBootstrap(t, `[
		{
			"name": "open_browser",
			"version": "1.2.0",
			"description": "Open the default web browser.",
			"triggers": ["open the browser", "launch browser"],
			"parameters": [{"name": "url", "type": "string", "required": false}],
			"transport": "mqtt",
			"agent_id": "agent-demo-01"
		}
	]`)

	caps, err := LoadBootstrap(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(caps) != 1 {
		t.Fatalf("len(caps) = %d, want 1", len(caps))
	}
	c := caps[0]
	if c.Name != "open_browser" || c.AgentID != "agent-demo-01" {
		t.Fatalf("unexpected capability: %+v", c)
	}
	if len(c.Triggers) != 2 {
		t.Fatalf("len(triggers) = %d, want 2", len(c.Triggers))
	}
}

func TestLoadBootstrapEmptyPath(t *testing.T) {
	caps, err := LoadBootstrap("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps != nil {
		t.Fatalf("caps = %v, want nil", caps)
	}
}

func TestLoadBootstrapValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing name", content: `[{"triggers":["x"],"transport":"mqtt","agent_id":"a"}]`},
		{name: "missing triggers", content: `[{"name":"x","transport":"mqtt","agent_id":"a"}]`},
		{name: "mqtt without agent", content: `[{"name":"x","triggers":["y"],"transport":"mqtt"}]`},
		{name: "not json", content: `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBootstrap(t, tt.content)
			if _, err := LoadBootstrap(path); err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}
