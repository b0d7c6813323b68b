package main

import "time"

// User represents an account that can log in to the HTTP API.  Passwords are
// stored as bcrypt hashes.  The Admin flag indicates whether the user may read
// the event log and manage other user accounts.
type User struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"password_hash" yaml:"password_hash"`
	Admin        bool   `json:"admin" yaml:"admin"`
}

// ProbeConfig selects where the motion reading comes from.  Kind is one of
// "gpio" (default), "modbus" or "stub".  Mode is the wiring of the sensor
// output: "NO" (high means motion, default) or "NC".
type ProbeConfig struct {
	Kind   string            `yaml:"kind"`
	Mode   string            `yaml:"mode,omitempty"`
	Modbus ModbusProbeConfig `yaml:"modbus,omitempty"`
}

// ModbusProbeConfig addresses one discrete input on a Modbus TCP module.
type ModbusProbeConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	UnitID   byte          `yaml:"unit_id,omitempty"`
	Address  uint16        `yaml:"address,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// HTTPConfig controls the API listener.  TLS is used when both CertFile and
// KeyFile are set.  SessionTTL is how long a login stays valid.
type HTTPConfig struct {
	Addr       string        `yaml:"addr"`
	CertFile   string        `yaml:"cert_file,omitempty"`
	KeyFile    string        `yaml:"key_file,omitempty"`
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
}

// LogConfig controls diagnostics (Level, Format) and the event journal (File).
type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// AlertConfig configures one alert handler.  Type is "log", "email", "mqtt"
// or "display".  The SMTP fields are only used by the email handler.
type AlertConfig struct {
	Type       string        `yaml:"type"`
	SMTPServer string        `yaml:"smtp_server,omitempty"`
	SMTPPort   int           `yaml:"smtp_port,omitempty"`
	Username   string        `yaml:"username,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	From       string        `yaml:"from,omitempty"`
	To         string        `yaml:"to,omitempty"`
	Subject    string        `yaml:"subject,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// MQTTConfig is the broker used by the mqtt alert handler.
type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Config is the top-level structure serialised to config.yaml.  Pin and bus
// numbers are logical; the bridge offset is applied when the board is built.
type Config struct {
	Board        string        `yaml:"board"`
	Platform     string        `yaml:"platform"`
	FirmataPort  string        `yaml:"firmata_port,omitempty"`
	MotionPin    int           `yaml:"motion_pin"`
	I2CBus       int           `yaml:"i2c_bus"`
	LCDAddress   uint16        `yaml:"lcd_address"`
	RGBAddress   uint16        `yaml:"rgb_address"`
	Probe        ProbeConfig   `yaml:"probe"`
	PollInterval time.Duration `yaml:"poll_interval"`
	HTTP         HTTPConfig    `yaml:"http"`
	Log          LogConfig     `yaml:"log"`
	Alerts       []AlertConfig `yaml:"alerts"`
	MQTT         MQTTConfig    `yaml:"mqtt,omitempty"`
	Users        []User        `yaml:"users"`
}
