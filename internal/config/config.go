/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user scope, environment
// overrides, and the library password kept in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML.
// Environment variables are read-only overrides applied by Load.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Compiler      CompilerConfig `yaml:"compiler"`
	Runtime       RuntimeConfig  `yaml:"runtime"`
	Library       LibraryConfig  `yaml:"library"`
	Export        ExportConfig   `yaml:"export"`
	Logging       LoggingConfig  `yaml:"logging"`
}

type CompilerConfig struct {
	SceneFilter []string `yaml:"scene_filter"`
	Strict      bool     `yaml:"strict"`
}

type RuntimeConfig struct {
	TickMs     int  `yaml:"tick_ms"`
	AutoChoice bool `yaml:"auto_choice"`
}

type LibraryConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "pgx"
	Path   string `yaml:"path"`   // sqlite database file
	DSN    string `yaml:"dsn"`    // postgres connection URL, without password
	User   string `yaml:"user"`
	// The password is not stored on disk; it lives in the OS keychain.
}

type ExportConfig struct {
	PageSize string `yaml:"page_size"`
	Font     string `yaml:"font"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Compiler:      CompilerConfig{},
		Runtime:       RuntimeConfig{TickMs: 16},
		Library:       LibraryConfig{Driver: "sqlite", Path: defaultLibraryPath()},
		Export:        ExportConfig{PageSize: "A4", Font: "Courier"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath    = "GCS_CONFIG"
	EnvSceneFilter   = "GCS_SCENE_FILTER"
	EnvStrict        = "GCS_STRICT"
	EnvTickMs        = "GCS_TICK_MS"
	EnvLibraryDriver = "GCS_LIBRARY_DRIVER"
	EnvLibraryPath   = "GCS_LIBRARY_PATH"
	EnvLibraryDSN    = "GCS_LIBRARY_DSN"
	EnvLogLevel      = "GCS_LOG_LEVEL"
	EnvLogFormat     = "GCS_LOG_FORMAT"
	EnvLogSource     = "GCS_LOG_SOURCE"
	EnvLogFile       = "GCS_LOG_FILE"
)

// configDir returns the per-user application directory.
func configDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoCutscene")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoCutscene")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "gocutscene")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

func defaultLibraryPath() string {
	dir, err := configDir()
	if err != nil {
		return "library.db"
	}
	return filepath.Join(dir, "library.db")
}

// ConfigPath returns the config file path; GCS_CONFIG overrides the per-user default.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and environment overrides,
// and fetches the library password from the keyring (returned separately, empty if unset).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	pw, _ := LibraryPassword(cfg.Library.User)
	return cfg, pw, nil
}

// Save writes the YAML file and stores the password in the keyring when non-empty.
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		return SetLibraryPassword(cfg.Library.User, password)
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if len(src.Compiler.SceneFilter) > 0 {
		dst.Compiler.SceneFilter = append([]string(nil), src.Compiler.SceneFilter...)
	}
	dst.Compiler.Strict = src.Compiler.Strict
	if src.Runtime.TickMs > 0 {
		dst.Runtime.TickMs = src.Runtime.TickMs
	}
	dst.Runtime.AutoChoice = src.Runtime.AutoChoice
	if v := strings.ToLower(strings.TrimSpace(src.Library.Driver)); v != "" {
		dst.Library.Driver = v
	}
	if v := strings.TrimSpace(src.Library.Path); v != "" {
		dst.Library.Path = v
	}
	if v := strings.TrimSpace(src.Library.DSN); v != "" {
		dst.Library.DSN = v
	}
	if v := strings.TrimSpace(src.Library.User); v != "" {
		dst.Library.User = v
	}
	if v := strings.TrimSpace(src.Export.PageSize); v != "" {
		dst.Export.PageSize = v
	}
	if v := strings.TrimSpace(src.Export.Font); v != "" {
		dst.Export.Font = v
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvSceneFilter)); v != "" {
		cfg.Compiler.SceneFilter = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Compiler.SceneFilter = append(cfg.Compiler.SceneFilter, name)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStrict)); v != "" {
		cfg.Compiler.Strict = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTickMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runtime.TickMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDriver)); v != "" {
		cfg.Library.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryPath)); v != "" {
		cfg.Library.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDSN)); v != "" {
		cfg.Library.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"compiler.scene_filter": EnvSceneFilter,
	"compiler.strict":       EnvStrict,
	"runtime.tick_ms":       EnvTickMs,
	"library.driver":        EnvLibraryDriver,
	"library.path":          EnvLibraryPath,
	"library.dsn":           EnvLibraryDSN,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// ConnString returns the driver data source. For pgx the password, if any, is added to the DSN.
func (l LibraryConfig) ConnString(password string) (string, error) {
	if l.Driver != "pgx" {
		return l.Path, nil
	}
	if l.DSN == "" {
		return "", errors.New("library.dsn is required for the pgx driver")
	}
	u, err := url.Parse(l.DSN)
	if err != nil {
		return "", fmt.Errorf("parse library.dsn: %w", err)
	}
	user := l.User
	if user == "" && u.User != nil {
		user = u.User.Username()
	}
	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}
	return u.String(), nil
}
