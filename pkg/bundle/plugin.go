package bundle

import (
	"encoding/json"
	"fmt"
)

// PluginRegistration describes one launchable application exposed to the
// unified entry point. Enabled modules that declare a registration get one
// artifact written under the plugin directory, keyed by the plugin id.
type PluginRegistration struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Exe         string       `json:"exe"`
	Args        []string     `json:"args,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Healthcheck *Healthcheck `json:"healthcheck,omitempty"`
}

// PluginArtifact is the on-disk form of a registration: the registration
// itself plus the id of the module that owns it. The module id is attached
// explicitly at write time, not merged during deserialization.
type PluginArtifact struct {
	PluginRegistration
	ModuleID string `json:"module_id"`
}

// NewPluginArtifact binds a registration to its owning module.
func NewPluginArtifact(reg PluginRegistration, moduleID string) PluginArtifact {
	return PluginArtifact{PluginRegistration: reg, ModuleID: moduleID}
}

// HealthcheckKind discriminates the healthcheck variants.
type HealthcheckKind string

const (
	// HealthcheckProcess checks for the plugin's process by executable name.
	HealthcheckProcess HealthcheckKind = "process"
	// HealthcheckPipe probes a named channel.
	HealthcheckPipe HealthcheckKind = "pipe"
	// HealthcheckHTTP probes an HTTP endpoint.
	HealthcheckHTTP HealthcheckKind = "http"
)

// Healthcheck is the launcher's liveness strategy for a plugin.
//
// Wire forms:
//
//	"process"
//	{"pipe": {"name": "..."}}
//	{"http": {"url": "..."}}
type Healthcheck struct {
	Kind HealthcheckKind
	Pipe *PipeHealthcheck
	HTTP *HTTPHealthcheck
}

// PipeHealthcheck names the channel to probe.
type PipeHealthcheck struct {
	Name string `json:"name"`
}

// HTTPHealthcheck names the URL to probe.
type HTTPHealthcheck struct {
	URL string `json:"url"`
}

func (h *Healthcheck) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if HealthcheckKind(tag) != HealthcheckProcess {
			return fmt.Errorf("unknown healthcheck %q", tag)
		}
		*h = Healthcheck{Kind: HealthcheckProcess}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("healthcheck must be \"process\" or a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("healthcheck must have exactly one variant, got %d", len(obj))
	}
	for key, raw := range obj {
		switch HealthcheckKind(key) {
		case HealthcheckPipe:
			var p PipeHealthcheck
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("parse pipe healthcheck: %w", err)
			}
			*h = Healthcheck{Kind: HealthcheckPipe, Pipe: &p}
		case HealthcheckHTTP:
			var p HTTPHealthcheck
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("parse http healthcheck: %w", err)
			}
			*h = Healthcheck{Kind: HealthcheckHTTP, HTTP: &p}
		default:
			return fmt.Errorf("unknown healthcheck %q", key)
		}
	}
	return nil
}

func (h Healthcheck) MarshalJSON() ([]byte, error) {
	switch h.Kind {
	case HealthcheckProcess:
		return json.Marshal(string(HealthcheckProcess))
	case HealthcheckPipe:
		return json.Marshal(map[string]*PipeHealthcheck{string(HealthcheckPipe): h.Pipe})
	case HealthcheckHTTP:
		return json.Marshal(map[string]*HTTPHealthcheck{string(HealthcheckHTTP): h.HTTP})
	}
	return nil, fmt.Errorf("unknown healthcheck %q", h.Kind)
}
