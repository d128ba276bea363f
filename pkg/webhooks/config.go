package webhooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// EndpointConfig is one endpoint entry in the YAML config file.
type EndpointConfig struct {
	URL         string   `yaml:"url"`
	Events      []string `yaml:"events"`
	Secret      string   `yaml:"secret"`
	Description string   `yaml:"description"`
}

type configFile struct {
	Webhooks []EndpointConfig `yaml:"webhooks"`
}

// LoadEndpointConfigs reads endpoint definitions from a YAML file.
func LoadEndpointConfigs(path string) ([]EndpointConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse webhook config: %w", err)
	}

	for i, ep := range file.Webhooks {
		if ep.URL == "" {
			return nil, fmt.Errorf("webhook config entry %d: url is required", i)
		}
		if len(ep.Events) == 0 {
			return nil, fmt.Errorf("webhook config entry %d: at least one event is required", i)
		}
		for _, event := range ep.Events {
			if !isKnownEvent(event) {
				return nil, fmt.Errorf("webhook config entry %d: unknown event %q", i, event)
			}
		}
	}
	return file.Webhooks, nil
}

func isKnownEvent(event string) bool {
	for _, known := range KnownEventTypes {
		if string(known) == event {
			return true
		}
	}
	return false
}

// LoadConfig replaces all config-sourced endpoints with the file's
// contents. API-registered endpoints are untouched.
func (m *Manager) LoadConfig(path string) error {
	configs, err := LoadEndpointConfigs(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for id, endpoint := range m.endpoints {
		if endpoint.fromConfig {
			delete(m.endpoints, id)
		}
	}
	m.mu.Unlock()

	for _, cfg := range configs {
		events := make([]EventType, len(cfg.Events))
		for i, event := range cfg.Events {
			events[i] = EventType(event)
		}
		endpoint := &Endpoint{
			URL:         cfg.URL,
			Events:      events,
			Secret:      cfg.Secret,
			Description: cfg.Description,
			fromConfig:  true,
		}
		if err := m.Register(endpoint); err != nil {
			return err
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"path":      path,
		"endpoints": len(configs),
	}).Info("webhook config loaded")
	return nil
}

// WatchConfig reloads the config file whenever it changes, until the
// context is cancelled. A reload that fails to parse keeps the previous
// endpoints and logs the error.
func (m *Manager) WatchConfig(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors and config reloaders often replace the
	// file, which would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.LoadConfig(path); err != nil {
					m.logger.WithError(err).Error("webhook config reload failed, keeping previous endpoints")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.WithError(err).Warn("webhook config watcher error")
			}
		}
	}()
	return nil
}
