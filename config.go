package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	defaultConfigFile = "config.ini"
	envPrefix         = "ATTENDO"
)

// PERSONIO ACCOUNT
type PersonioConfig struct {
	Subdomain    string `mapstructure:"subdomain"`
	EmailAddress string `mapstructure:"email_address"`
	Password     string `mapstructure:"password"`
	BaseURL      string `mapstructure:"base_url"`
}

// BROWSER PROCESS
type BrowserConfig struct {
	ExecPath    string `mapstructure:"exec_path"`
	ProfilePath string `mapstructure:"profile_path"`
	Headless    bool   `mapstructure:"headless"`
	KeepOpen    bool   `mapstructure:"keep_open"`
	WindowSize  string `mapstructure:"window_size"`
}

// STAGE TIMING
type RunConfig struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	TokenTimeout time.Duration `mapstructure:"token_timeout"` // 0 waits forever
	TokenPrompt  bool          `mapstructure:"token_prompt"`
	DumpDir      string        `mapstructure:"dump_dir"`
}

// XPath expressions for the portal elements the stages touch
type Selectors struct {
	Email          string `mapstructure:"email"`
	Password       string `mapstructure:"password"`
	LoginButton    string `mapstructure:"login_button"`
	Token          string `mapstructure:"token"`
	ContinueButton string `mapstructure:"continue_button"`
	AttendanceLink string `mapstructure:"attendance_link"`
}

type Config struct {
	Personio  PersonioConfig `mapstructure:"personio"`
	Browser   BrowserConfig  `mapstructure:"browser"`
	Run       RunConfig      `mapstructure:"run"`
	Selectors Selectors      `mapstructure:"selectors"`
}

// the portal's markup as of writing, the login button text is German
var defaultSelectors = Selectors{
	Email:          `//input[@id="email"]`,
	Password:       `//input[@id="password"]`,
	LoginButton:    `//button[@type="submit"]//div[contains(text(), "Einloggen")]`,
	Token:          `//input[@id="token"]`,
	ContinueButton: `//button[@type="submit" and contains(text(), "Login")]`,
	AttendanceLink: `//a[@data-test-id="navsidebar-sub-myAttendance"]`,
}

var configDefaults = map[string]any{
	"personio.subdomain":     "",
	"personio.email_address": "",
	"personio.password":      "",
	"personio.base_url":      "",

	"browser.exec_path":    "",
	"browser.profile_path": "",
	"browser.headless":     false,
	"browser.keep_open":    false,
	"browser.window_size":  "1280,900",

	"run.wait_timeout":  5 * time.Second,
	"run.poll_interval": 1 * time.Second,
	"run.token_timeout": time.Duration(0),
	"run.token_prompt":  false,
	"run.dump_dir":      "",

	"selectors.email":           defaultSelectors.Email,
	"selectors.password":        defaultSelectors.Password,
	"selectors.login_button":    defaultSelectors.LoginButton,
	"selectors.token":           defaultSelectors.Token,
	"selectors.continue_button": defaultSelectors.ContinueButton,
	"selectors.attendance_link": defaultSelectors.AttendanceLink,
}

// command line flags that override a config key
var flagKeys = map[string]string{
	"headless":     "browser.headless",
	"keep-open":    "browser.keep_open",
	"token-prompt": "run.token_prompt",
	"wait":         "run.wait_timeout",
	"dump-dir":     "run.dump_dir",
}

// loadConfig reads .env, the INI file at path and ATTENDO_* environment
// variables, in increasing order of precedence, then applies changed flags.
// An empty path means config.ini in the working directory, which may be absent.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// XPath selectors use # and ; so inline comments are not stripped
	v := viper.NewWithOptions(viper.IniLoadOptions(ini.LoadOptions{IgnoreInlineComment: true}))
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		slog.Info("Config file loaded", "path", path)
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	} else {
		slog.Debug("No config file, using environment only", "path", path)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Personio.Subdomain = strings.TrimSpace(cfg.Personio.Subdomain)
	cfg.Personio.BaseURL = strings.TrimSpace(cfg.Personio.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Personio.Subdomain == "" && c.Personio.BaseURL == "" {
		return errors.New("config: personio.subdomain is required")
	}
	if strings.ContainsAny(c.Personio.Subdomain, "/:. ") {
		return fmt.Errorf("config: invalid personio.subdomain %q", c.Personio.Subdomain)
	}
	// bare numbers decode as nanoseconds, a unit is required
	if c.Run.WaitTimeout < time.Millisecond {
		return fmt.Errorf("config: run.wait_timeout %v is too small (use a unit, e.g. 5s)", c.Run.WaitTimeout)
	}
	if c.Run.PollInterval < time.Millisecond {
		return fmt.Errorf("config: run.poll_interval %v is too small (use a unit, e.g. 1s)", c.Run.PollInterval)
	}
	if c.Run.TokenTimeout < 0 {
		return fmt.Errorf("config: run.token_timeout must not be negative")
	}

	selectors := map[string]string{
		"email":           c.Selectors.Email,
		"password":        c.Selectors.Password,
		"login_button":    c.Selectors.LoginButton,
		"token":           c.Selectors.Token,
		"continue_button": c.Selectors.ContinueButton,
		"attendance_link": c.Selectors.AttendanceLink,
	}
	for name, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("config: selectors.%s must not be empty", name)
		}
	}
	return nil
}

// PortalURL is the page the run starts from.
func (c *Config) PortalURL() string {
	if c.Personio.BaseURL != "" {
		return strings.TrimRight(c.Personio.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.personio.de", c.Personio.Subdomain)
}

func (c *Config) HasCredentials() bool {
	return c.Personio.EmailAddress != "" && c.Personio.Password != ""
}

// LogValue keeps the password out of the logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("portal", c.PortalURL()),
		slog.String("email", c.Personio.EmailAddress),
		slog.Bool("password_set", c.Personio.Password != ""),
		slog.String("profile", c.Browser.ProfilePath),
		slog.Bool("headless", c.Browser.Headless),
		slog.Duration("wait", c.Run.WaitTimeout),
		slog.Duration("poll", c.Run.PollInterval),
		slog.Duration("token_timeout", c.Run.TokenTimeout),
		slog.Bool("token_prompt", c.Run.TokenPrompt),
	)
}
