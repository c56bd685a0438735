// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package config

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	// JWTSecretEnvVar overrides auth.jwt_secret when set.
	JWTSecretEnvVar = "TECHDESK_JWT_SECRET"

	// MinJWTSecretLength is the minimum accepted size of the token signing secret.
	MinJWTSecretLength = 32

	DefaultTokenTTL        = 24 * time.Hour
	DefaultBcryptCost      = 10
	DefaultPassword        = "632536"
	DefaultMaxUploadMB     = 50
	DefaultRateWindow      = 15 * time.Minute
	DefaultRequestsPerRate = 100
	DefaultPresignTTL      = 15 * time.Minute
)

type StorageBackend string

const (
	LocalStorageBackend StorageBackend = "local"
	S3StorageBackend    StorageBackend = "s3"
)

// NewConfig loads the TOML config file, overlays values from the
// environment (optionally seeded from a .env file) and validates the result.
func NewConfig(cfgFile string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	var config Config
	if _, err := toml.DecodeFile(cfgFile, &config); err != nil {
		return nil, errors.Wrap(err, "decoding toml")
	}
	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return &config, nil
}

// Duration is a time.Duration that decodes from strings such as "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

type HTTPServer struct {
	BindAddr string `toml:"bind_address"`
	BindPort int    `toml:"bind_port"`

	UseTLS    bool      `toml:"use_tls" json:"use-tls"`
	TLSConfig TLSConfig `toml:"tls" json:"tls"`

	// TrustProxyHeaders makes the server take the client address from
	// X-Forwarded-For. Only enable this behind a reverse proxy.
	TrustProxyHeaders bool     `toml:"trust_proxy_headers"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	WebRoot           string   `toml:"web_root"`
	MaxUploadMB       int64    `toml:"max_upload_mb"`

	RequestsPerWindow int      `toml:"requests_per_window"`
	RateWindow        Duration `toml:"rate_window"`
}

func (a *HTTPServer) Validate() error {
	if a.UseTLS {
		if err := a.TLSConfig.Validate(); err != nil {
			return fmt.Errorf("failed to validate tls config: %w", err)
		}
	}
	if a.BindPort > 65535 || a.BindPort < 1 {
		return fmt.Errorf("invalid port nr %d", a.BindPort)
	}

	ip := net.ParseIP(a.BindAddr)
	if ip == nil {
		// No need for deeper validation here, as any invalid
		// IP address specified in this setting will raise an error
		// when we try to bind to it.
		return fmt.Errorf("invalid IP address")
	}

	if a.WebRoot != "" {
		if _, err := os.Stat(a.WebRoot); err != nil {
			return fmt.Errorf("failed to access web root: %w", err)
		}
	}

	if a.MaxUploadMB < 0 {
		return fmt.Errorf("max_upload_mb must not be negative")
	}
	if a.RequestsPerWindow < 0 {
		return fmt.Errorf("requests_per_window must not be negative")
	}
	return nil
}

// BindAddress returns a host:port string.
func (a *HTTPServer) BindAddress() string {
	return fmt.Sprintf("%s:%d", a.BindAddr, a.BindPort)
}

// MaxUploadBytes returns the upload size limit, falling back to the default.
func (a *HTTPServer) MaxUploadBytes() int64 {
	if a.MaxUploadMB == 0 {
		return DefaultMaxUploadMB << 20
	}
	return a.MaxUploadMB << 20
}

// RateLimit returns the number of requests a single client may issue per window.
func (a *HTTPServer) RateLimit() (int, time.Duration) {
	requests := a.RequestsPerWindow
	if requests == 0 {
		requests = DefaultRequestsPerRate
	}
	window := a.RateWindow.Duration
	if window <= 0 {
		window = DefaultRateWindow
	}
	return requests, window
}

type TLSConfig struct {
	CRT string `toml:"certificate" json:"certificate"`
	Key string `toml:"key" json:"key"`
}

// Validate validates the TLS config
func (t *TLSConfig) Validate() error {
	if t.CRT == "" || t.Key == "" {
		return fmt.Errorf("missing crt or key")
	}

	_, err := tls.LoadX509KeyPair(t.CRT, t.Key)
	if err != nil {
		return err
	}
	return nil
}

type Database struct {
	SQLiteFile  string `toml:"sqlite_file"`
	Debug       bool   `toml:"debug"`
	GeoIPDBFile string `toml:"geoip_db_file"`
}

func (d *Database) Validate() error {
	if d.SQLiteFile == "" {
		return fmt.Errorf("sqlite_file is required")
	}
	if d.GeoIPDBFile != "" {
		if _, err := os.Stat(d.GeoIPDBFile); err != nil {
			return fmt.Errorf("failed to access geoip database: %w", err)
		}
	}
	return nil
}

// GormParams returns the DSN handed to the sqlite driver. Foreign keys must be
// enabled on every connection, otherwise the ON DELETE rules are ignored.
func (d *Database) GormParams() (string, error) {
	if d.SQLiteFile == "" {
		return "", fmt.Errorf("missing sqlite file")
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", d.SQLiteFile), nil
}

type Auth struct {
	JWTSecret       string   `toml:"jwt_secret"`
	TokenTTL        Duration `toml:"token_ttl"`
	BcryptCost      int      `toml:"bcrypt_cost"`
	DefaultPassword string   `toml:"default_password"`
}

func (a *Auth) Validate() error {
	if len(a.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("jwt_secret must be at least %d bytes long (set it in the config or via %s)", MinJWTSecretLength, JWTSecretEnvVar)
	}
	if a.TokenTTL.Duration < 0 {
		return fmt.Errorf("token_ttl must not be negative")
	}
	if a.BcryptCost != 0 && (a.BcryptCost < 4 || a.BcryptCost > 31) {
		return fmt.Errorf("invalid bcrypt_cost %d", a.BcryptCost)
	}
	return nil
}

// TTL returns the lifetime of issued tokens.
func (a *Auth) TTL() time.Duration {
	if a.TokenTTL.Duration == 0 {
		return DefaultTokenTTL
	}
	return a.TokenTTL.Duration
}

// Cost returns the bcrypt cost used when hashing passwords.
func (a *Auth) Cost() int {
	if a.BcryptCost == 0 {
		return DefaultBcryptCost
	}
	return a.BcryptCost
}

// InitialPassword is the password set when the store holds no credentials yet.
func (a *Auth) InitialPassword() string {
	if a.DefaultPassword == "" {
		return DefaultPassword
	}
	return a.DefaultPassword
}

type S3 struct {
	Bucket     string   `toml:"bucket"`
	Region     string   `toml:"region"`
	Endpoint   string   `toml:"endpoint"`
	AccessKey  string   `toml:"access_key"`
	SecretKey  string   `toml:"secret_key"`
	PresignTTL Duration `toml:"presign_ttl"`
}

func (s *S3) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("missing s3 bucket")
	}
	if s.Region == "" {
		return fmt.Errorf("missing s3 region")
	}
	if (s.AccessKey == "") != (s.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	return nil
}

func (s *S3) PresignDuration() time.Duration {
	if s.PresignTTL.Duration <= 0 {
		return DefaultPresignTTL
	}
	return s.PresignTTL.Duration
}

type Storage struct {
	Backend   StorageBackend `toml:"backend"`
	UploadDir string         `toml:"upload_dir"`
	S3        S3             `toml:"s3"`
}

func (s *Storage) Validate() error {
	switch s.Backend {
	case "", LocalStorageBackend:
		if s.UploadDir == "" {
			return fmt.Errorf("upload_dir is required for the local storage backend")
		}
	case S3StorageBackend:
		if err := s.S3.Validate(); err != nil {
			return fmt.Errorf("failed to validate s3 config: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
	return nil
}

type DebugServer struct {
	Enabled  bool   `toml:"enabled"`
	BindAddr string `toml:"bind_address"`
	BindPort int    `toml:"bind_port"`
}

func (d *DebugServer) Validate() error {
	if !d.Enabled {
		return nil
	}
	if d.BindPort > 65535 || d.BindPort < 1 {
		return fmt.Errorf("invalid port nr %d", d.BindPort)
	}
	if net.ParseIP(d.BindAddr) == nil {
		return fmt.Errorf("invalid IP address")
	}
	return nil
}

func (d *DebugServer) BindAddressString() string {
	return fmt.Sprintf("%s:%d", d.BindAddr, d.BindPort)
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

func (l *Logging) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", l.Level)
	}
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", l.Format)
	}
	return nil
}

type Config struct {
	HTTPServer  HTTPServer  `toml:"http_server"`
	Database    Database    `toml:"database"`
	Auth        Auth        `toml:"auth"`
	Storage     Storage     `toml:"storage"`
	DebugServer DebugServer `toml:"debug_server"`
	Logging     Logging     `toml:"logging"`
}

func (c *Config) applyEnv() {
	if secret := os.Getenv(JWTSecretEnvVar); secret != "" {
		c.Auth.JWTSecret = secret
	}
}

func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return fmt.Errorf("failed to validate http server config: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("failed to validate database config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("failed to validate auth config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("failed to validate storage config: %w", err)
	}

	if err := c.DebugServer.Validate(); err != nil {
		return fmt.Errorf("failed to validate debug server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("failed to validate logging config: %w", err)
	}
	return nil
}
