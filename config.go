package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is used when no --config flag is given.
const defaultConfigPath = "~/.config/groveboard/config.yaml"

// ErrNoAdmin is returned by Validate when no user may administer the board.
var ErrNoAdmin = errors.New("at least one admin user is required")

// DefaultConfig returns the pin mapping of the Grove starter kit board: PIR
// on D4, RGB LCD on I2C bus 6.  It has no users; Load adds the initial admin
// when it creates the file.
func DefaultConfig() Config {
	return Config{
		Board:        "grove",
		Platform:     string(TransportNative),
		MotionPin:    4,
		I2CBus:       6,
		LCDAddress:   0x3E,
		RGBAddress:   0x62,
		Probe:        ProbeConfig{Kind: ProbeGPIO, Mode: "NO"},
		PollInterval: 200 * time.Millisecond,
		HTTP:         HTTPConfig{Addr: ":8080", SessionTTL: defaultSessionTTL},
		Log:          LogConfig{File: "events.log", Level: "info", Format: "text"},
		Alerts:       []AlertConfig{{Type: "log"}},
		MQTT:         MQTTConfig{TopicPrefix: "groveboard"},
	}
}

// ConfigManager wraps the loaded configuration and a mutex for concurrent
// access.  When modifying configuration through the HTTP API, use Update so
// the change is persisted.
type ConfigManager struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	loaded bool
}

// Path returns the expanded location of the configuration file.
func (cm *ConfigManager) Path() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.path
}

// Load reads configuration from path ("~" is expanded).  If the file does not
// exist, the default configuration is created with a single admin user
// (password: "admin", which you should change immediately) and persisted.
// Fields missing from an existing file keep their default values.
func (cm *ConfigManager) Load(path string) error {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}

	cm.mu.Lock()
	if cm.loaded {
		cm.mu.Unlock()
		return nil
	}
	cm.path = expanded
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.Users = []User{
				{Username: "admin", PasswordHash: hashPassword("admin"), Admin: true},
			}
			cm.cfg = cfg
			cm.loaded = true
			// Save takes the read lock.
			cm.mu.Unlock()
			return cm.Save()
		}
		cm.mu.Unlock()
		return fmt.Errorf("unable to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("invalid %s: %w", filepath.Base(expanded), err)
	}
	if err := cfg.Validate(); err != nil {
		cm.mu.Unlock()
		return err
	}
	cm.cfg = cfg
	cm.loaded = true
	cm.mu.Unlock()
	return nil
}

// Save writes the configuration to disk through a temporary file.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := yaml.Marshal(cm.cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o700); err != nil {
		return err
	}
	tmpPath := cm.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, cm.path)
}

// Get returns a copy of the current configuration.  Callers must treat the
// returned Config as immutable.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// Update applies fn to the configuration under the write lock, validates the
// result and persists it.  The updater must not retain the pointer.
func (cm *ConfigManager) Update(fn func(*Config) error) error {
	cm.mu.Lock()
	next := cm.cfg
	next.Users = append([]User(nil), cm.cfg.Users...)
	if err := fn(&next); err != nil {
		cm.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		cm.mu.Unlock()
		return err
	}
	cm.cfg = next
	cm.mu.Unlock()
	return cm.Save()
}

// FindUser returns a user and its index by username.  If not found, index
// will be -1.
func (cm *ConfigManager) FindUser(username string) (User, int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for i, u := range cm.cfg.Users {
		if u.Username == username {
			return u, i
		}
	}
	return User{}, -1
}

// Authenticate checks whether the provided username and password are valid.
func (cm *ConfigManager) Authenticate(username, password string) (User, error) {
	user, _ := cm.FindUser(username)
	if user.Username == "" {
		return User{}, errors.New("invalid credentials")
	}
	if err := checkPasswordHash(password, user.PasswordHash); err != nil {
		return User{}, errors.New("invalid credentials")
	}
	return user, nil
}

// Validate checks the configuration for values the board cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Board) == "" {
		return errors.New("board name must not be empty")
	}
	t, err := ParseTransport(c.Platform)
	if err != nil {
		return fmt.Errorf("invalid platform: %w", err)
	}
	if t == TransportFirmata && c.FirmataPort != "" && !strings.HasPrefix(c.FirmataPort, "/") {
		return fmt.Errorf("invalid firmata_port %q: must be an absolute device path", c.FirmataPort)
	}
	if c.MotionPin < 0 {
		return fmt.Errorf("invalid motion_pin %d", c.MotionPin)
	}
	if c.I2CBus < 0 {
		return fmt.Errorf("invalid i2c_bus %d", c.I2CBus)
	}
	if c.LCDAddress == 0 || c.LCDAddress > 0x7F || c.RGBAddress == 0 || c.RGBAddress > 0x7F {
		return fmt.Errorf("invalid lcd/rgb address %#x/%#x: must be 7-bit", c.LCDAddress, c.RGBAddress)
	}

	switch strings.ToLower(c.Probe.Kind) {
	case "", ProbeGPIO, ProbeStub:
	case ProbeModbus:
		if c.Probe.Modbus.Endpoint == "" {
			return errors.New("probe kind modbus requires probe.modbus.endpoint")
		}
	default:
		return fmt.Errorf("invalid probe kind %q (allowed: gpio, modbus, stub)", c.Probe.Kind)
	}
	if !validSensorMode(c.Probe.Mode) {
		return fmt.Errorf("invalid probe mode %q (allowed: NO, NC)", c.Probe.Mode)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.HTTP.SessionTTL < 0 {
		return fmt.Errorf("http.session_ttl must not be negative, got %v", c.HTTP.SessionTTL)
	}

	if _, err := parseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (allowed: text, json)", c.Log.Format)
	}

	for _, a := range c.Alerts {
		switch strings.ToLower(a.Type) {
		case "log", "display":
		case "email":
			if a.SMTPServer == "" || a.To == "" {
				return errors.New("email alert requires smtp_server and to")
			}
		case "mqtt":
			if c.MQTT.Broker == "" {
				return errors.New("mqtt alert requires mqtt.broker")
			}
		default:
			return fmt.Errorf("invalid alert type %q (allowed: log, email, mqtt, display)", a.Type)
		}
	}

	seen := make(map[string]bool, len(c.Users))
	admins := 0
	for _, u := range c.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return errors.New("users need a username and password_hash")
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user %q", u.Username)
		}
		seen[u.Username] = true
		if u.Admin {
			admins++
		}
	}
	if admins == 0 {
		return ErrNoAdmin
	}
	return nil
}
