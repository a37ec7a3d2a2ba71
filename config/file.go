package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// fileConfig mirrors Config for YAML decoding. Pointers and strings let an
// absent key keep the current value.
type fileConfig struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Mode            string `yaml:"mode"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Browser struct {
		Driver          string            `yaml:"driver"`
		Headless        *bool             `yaml:"headless"`
		NoSandbox       *bool             `yaml:"no_sandbox"`
		Bin             string            `yaml:"bin"`
		Proxy           string            `yaml:"proxy"`
		PageLoadTimeout string            `yaml:"page_load_timeout"`
		MaxTabs         int               `yaml:"max_tabs"`
		Stealth         *bool             `yaml:"stealth"`
		ExtraHeaders    map[string]string `yaml:"extra_headers"`
		WaitStrategy    string            `yaml:"wait_strategy"`
	} `yaml:"browser"`

	Converter struct {
		DefaultWait string `yaml:"default_wait"`
		MaxWait     string `yaml:"max_wait"`
	} `yaml:"converter"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// loadFile reads a YAML config file and overlays its values onto cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setInt(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.Mode, fc.Server.Mode)
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return err
	}

	setString(&cfg.Browser.Driver, fc.Browser.Driver)
	setBool(&cfg.Browser.Headless, fc.Browser.Headless)
	setBool(&cfg.Browser.NoSandbox, fc.Browser.NoSandbox)
	setString(&cfg.Browser.BrowserBin, fc.Browser.Bin)
	setString(&cfg.Browser.Proxy, fc.Browser.Proxy)
	if err := setDuration(&cfg.Browser.PageLoadTimeout, fc.Browser.PageLoadTimeout, "browser.page_load_timeout"); err != nil {
		return err
	}
	setInt(&cfg.Browser.MaxTabs, fc.Browser.MaxTabs)
	setBool(&cfg.Browser.Stealth, fc.Browser.Stealth)
	if len(fc.Browser.ExtraHeaders) > 0 {
		cfg.Browser.ExtraHeaders = fc.Browser.ExtraHeaders
	}
	setString(&cfg.Browser.WaitStrategy, fc.Browser.WaitStrategy)

	if err := setDuration(&cfg.Converter.DefaultWait, fc.Converter.DefaultWait, "converter.default_wait"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Converter.MaxWait, fc.Converter.MaxWait, "converter.max_wait"); err != nil {
		return err
	}

	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)
	setString(&cfg.Log.File, fc.Log.File)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, key string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
