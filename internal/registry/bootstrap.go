package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"relay/internal/domain"
)

// BootstrapCapability is one declaration from the bootstrap file. Transport
// binding is resolved by the caller (only "mqtt" is understood today).
type BootstrapCapability struct {
	Name        string             `json:"name"`
	Version     string             `json:"version"`
	Description string             `json:"description"`
	Triggers    []string           `json:"triggers"`
	Parameters  []domain.Parameter `json:"parameters,omitempty"`
	Transport   string             `json:"transport"`
	AgentID     string             `json:"agent_id,omitempty"`
}

// LoadBootstrap reads capability declarations from a JSON file. The file is
// a plain array; an empty path yields an empty list.
func LoadBootstrap(path string) ([]BootstrapCapability, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap file: %w", err)
	}
	var caps []BootstrapCapability
	if err := json.Unmarshal(raw, &caps); err != nil {
		return nil, fmt.Errorf("parse bootstrap file %s: %w", path, err)
	}
	for i, c := range caps {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("bootstrap entry %d: name is required", i)
		}
		if len(c.Triggers) == 0 {
			return nil, fmt.Errorf("bootstrap capability %s: at least one trigger is required", c.Name)
		}
		if c.Transport == "mqtt" && strings.TrimSpace(c.AgentID) == "" {
			return nil, fmt.Errorf("bootstrap capability %s: agent_id is required for mqtt transport", c.Name)
		}
	}
	return caps, nil
}
