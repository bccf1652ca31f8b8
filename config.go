package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tomaslejdung/goview/pkg/schedule"
)

// UserSettings holds persistable viewer preferences
type UserSettings struct {
	Views        int     `json:"views"`
	Width        uint32  `json:"width"`
	Height       uint32  `json:"height"`
	BitrateScale float32 `json:"bitrateScale"`
	Schedule     string  `json:"schedule"`
	Preset       string  `json:"preset"`
	Lossless     bool    `json:"lossless"`
	GPU          bool    `json:"gpu"`
	FullRange    bool    `json:"fullRange"`
}

// SettingsManager handles loading and saving user settings
type SettingsManager struct {
	path     string
	settings UserSettings
}

// NewSettingsManager creates a settings manager with the default config path
func NewSettingsManager() (*SettingsManager, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return &SettingsManager{path: path}, nil
}

// getConfigPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the platform user config dir.
func getConfigPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "goview")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "goview")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// DefaultSettings returns the default settings
func DefaultSettings() UserSettings {
	return UserSettings{
		Views:        1,
		Width:        1024,
		Height:       768,
		BitrateScale: 1.0,
		Schedule:     schedule.Default.String(),
		Preset:       "",
		Lossless:     false,
		GPU:          true,
		FullRange:    false,
	}
}

// Load reads settings from the config file.
// Returns default settings if file doesn't exist or is invalid.
func (sm *SettingsManager) Load() (UserSettings, error) {
	sm.settings = DefaultSettings()

	data, err := os.ReadFile(sm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sm.settings, nil
		}
		return sm.settings, err
	}

	if err := json.Unmarshal(data, &sm.settings); err != nil {
		return DefaultSettings(), nil
	}

	sm.validateSettings()

	return sm.settings, nil
}

// validateSettings ensures loaded settings are within valid ranges
func (sm *SettingsManager) validateSettings() {
	if sm.settings.Views < 1 {
		sm.settings.Views = 1
	}
	if sm.settings.Width == 0 || sm.settings.Height == 0 {
		sm.settings.Width = DefaultSettings().Width
		sm.settings.Height = DefaultSettings().Height
	}
	if sm.settings.BitrateScale < 0.1 {
		sm.settings.BitrateScale = 1.0
	}
	sm.settings.Schedule = schedule.Parse(sm.settings.Schedule).String()
}

// Save writes current settings to the config file
func (sm *SettingsManager) Save(settings UserSettings) error {
	sm.settings = settings

	dir := filepath.Dir(sm.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(sm.path, data, 0644)
}

// GetSettings returns the current settings
func (sm *SettingsManager) GetSettings() UserSettings {
	return sm.settings
}
