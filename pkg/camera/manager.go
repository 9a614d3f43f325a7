package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Manager holds the live capture configuration. A change is validated and
// handed to OnConfigChange before it is stored, so a change the device
// rejects leaves the previous configuration in place.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange applies a new configuration to the capture source.
	// It runs under the manager lock and must not call back into it.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates, applies and stores cfg.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %s", strings.Join(errs, "; "))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OnConfigChange != nil {
		if err := m.OnConfigChange(cfg); err != nil {
			return fmt.Errorf("apply camera config: %w", err)
		}
	}
	m.config = cfg
	return nil
}

// UpdateConfig applies a partial update such as a decoded JSON body. A
// "preset" key starts from that preset with the current device; the other
// keys override single fields by their JSON names.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	fields := make(map[string]interface{}, len(params))
	for k, v := range params {
		fields[k] = v
	}
	if name, ok := fields["preset"]; ok {
		s, _ := name.(string)
		preset := GetPreset(s)
		if preset == nil {
			return fmt.Errorf("unknown preset: %v", name)
		}
		preset.Device = cfg.Device
		cfg = *preset
		delete(fields, "preset")
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("camera params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("camera params: %w", err)
	}
	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	return result
}
