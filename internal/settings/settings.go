// Package settings persists user configuration across process restarts: the
// loaded root directories, the system ignore pattern list, and tokenizer
// tuning. Values merge from a global file overlaid by a local one.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/askrepo/askrepo/internal/ignore"
)

const (
	// SettingsFileName is the configuration file looked up globally and locally.
	SettingsFileName = "askrepo.yaml"
	// GlobalSettingsDirectoryName is the directory under the user home holding global settings.
	GlobalSettingsDirectoryName = ".askrepo"

	rootsKey          = "roots"
	ignorePatternsKey = "ignore_patterns"
	modelKey          = "model"
	batchSizeKey      = "batch_size"
	debounceKey       = "debounce_ms"

	errorStatFormat      = "stat settings %s: %w"
	errorDirectoryFormat = "settings path %s is a directory"
	errorReadFormat      = "read settings from %s: %w"
	errorDecodeFormat    = "decode settings from %s: %w"
	errorWriteFormat     = "write settings to %s: %w"
	errorHomeFormat      = "determine home directory: %w"
)

// LoadOptions controls how settings files are discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// Settings holds the persisted application state. Root paths and ignore
// patterns are treated as opaque ordered string lists.
type Settings struct {
	Roots                []string `mapstructure:"roots"`
	IgnorePatterns       []string `mapstructure:"ignore_patterns"`
	Model                string   `mapstructure:"model"`
	BatchSize            *int     `mapstructure:"batch_size"`
	DebounceMilliseconds *int     `mapstructure:"debounce_ms"`
}

// Load merges the global settings file with a local (or explicitly provided)
// one. Missing files are not errors; a fresh installation starts from the
// default system ignore patterns.
func Load(options LoadOptions) (Settings, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return Settings{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged Settings
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, GlobalSettingsDirectoryName, SettingsFileName)
		globalSettings, loadError := loadFromPath(globalPath)
		if loadError != nil {
			return Settings{}, loadError
		}
		merged = merged.Merge(globalSettings)
	}

	localPath := options.ExplicitFilePath
	if localPath == "" {
		localPath = filepath.Join(workingDirectory, SettingsFileName)
	} else if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(workingDirectory, localPath)
	}
	localSettings, loadError := loadFromPath(localPath)
	if loadError != nil {
		return Settings{}, loadError
	}
	merged = merged.Merge(localSettings)

	if len(merged.IgnorePatterns) == 0 {
		merged.IgnorePatterns = append([]string{}, ignore.DefaultSystemPatterns...)
	}
	return merged, nil
}

// Save writes the settings to the provided path, creating parent directories
// as needed.
func Save(settingsPath string, settings Settings) error {
	if makeDirError := os.MkdirAll(filepath.Dir(settingsPath), 0o755); makeDirError != nil {
		return fmt.Errorf(errorWriteFormat, settingsPath, makeDirError)
	}
	writer := viper.New()
	writer.SetConfigFile(settingsPath)
	writer.SetConfigType("yaml")
	writer.Set(rootsKey, settings.Roots)
	writer.Set(ignorePatternsKey, settings.IgnorePatterns)
	if settings.Model != "" {
		writer.Set(modelKey, settings.Model)
	}
	if settings.BatchSize != nil {
		writer.Set(batchSizeKey, *settings.BatchSize)
	}
	if settings.DebounceMilliseconds != nil {
		writer.Set(debounceKey, *settings.DebounceMilliseconds)
	}
	if writeError := writer.WriteConfigAs(settingsPath); writeError != nil {
		return fmt.Errorf(errorWriteFormat, settingsPath, writeError)
	}
	return nil
}

// GlobalSettingsPath resolves the per-user settings file location.
func GlobalSettingsPath() (string, error) {
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", fmt.Errorf(errorHomeFormat, homeError)
	}
	return filepath.Join(homeDirectory, GlobalSettingsDirectoryName, SettingsFileName), nil
}

func loadFromPath(settingsPath string) (Settings, error) {
	if settingsPath == "" {
		return Settings{}, nil
	}
	pathInformation, statError := os.Stat(settingsPath)
	if statError != nil {
		if os.IsNotExist(statError) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf(errorStatFormat, settingsPath, statError)
	}
	if pathInformation.IsDir() {
		return Settings{}, fmt.Errorf(errorDirectoryFormat, settingsPath)
	}

	reader := viper.New()
	reader.SetConfigFile(settingsPath)
	if readError := reader.ReadInConfig(); readError != nil {
		return Settings{}, fmt.Errorf(errorReadFormat, settingsPath, readError)
	}
	var loaded Settings
	if decodeError := reader.Unmarshal(&loaded); decodeError != nil {
		return Settings{}, fmt.Errorf(errorDecodeFormat, settingsPath, decodeError)
	}
	return loaded, nil
}

// Merge overlays override onto the receiver returning the combined settings.
func (settings Settings) Merge(override Settings) Settings {
	result := settings
	if len(override.Roots) > 0 {
		result.Roots = append([]string{}, override.Roots...)
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = append([]string{}, override.IgnorePatterns...)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.BatchSize != nil {
		result.BatchSize = cloneInt(override.BatchSize)
	}
	if override.DebounceMilliseconds != nil {
		result.DebounceMilliseconds = cloneInt(override.DebounceMilliseconds)
	}
	return result
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
