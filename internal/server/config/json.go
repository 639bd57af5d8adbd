package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gestion-comercial/backend/internal/flagx"
	"github.com/gestion-comercial/backend/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Duration fields use
// timex.Duration so both "15m" strings and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	JWTSecret                    string         `json:"jwt_secret"`
	JWTRefreshSecret             string         `json:"jwt_refresh_secret"`
	JWTIssuer                    string         `json:"jwt_issuer"`
	JWTAudience                  string         `json:"jwt_audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	MaxLoginAttempts             int            `json:"max_login_attempts"`
	LockDuration                 timex.Duration `json:"lock_duration"`
	AdminLockDuration            timex.Duration `json:"admin_lock_duration"`
	TempPasswordValidityDuration timex.Duration `json:"temp_password_validity_duration"`
	SessionSweepInterval         timex.Duration `json:"session_sweep_interval"`
}

// applyJsonFile reads the JSON file at path and copies any non-zero values
// into the target Config.
func applyJsonFile(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	if c.EndpointAddrGRPC != "" {
		config.EndpointAddrGRPC = c.EndpointAddrGRPC
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.JWTSecret != "" {
		config.JWTSecret = c.JWTSecret
	}
	if c.JWTRefreshSecret != "" {
		config.JWTRefreshSecret = c.JWTRefreshSecret
	}
	if c.JWTIssuer != "" {
		config.JWTIssuer = c.JWTIssuer
	}
	if c.JWTAudience != "" {
		config.JWTAudience = c.JWTAudience
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MaxLoginAttempts != 0 {
		config.MaxLoginAttempts = c.MaxLoginAttempts
	}
	if c.LockDuration.Duration != 0 {
		config.LockDuration = time.Duration(c.LockDuration.Duration)
	}
	if c.AdminLockDuration.Duration != 0 {
		config.AdminLockDuration = time.Duration(c.AdminLockDuration.Duration)
	}
	if c.TempPasswordValidityDuration.Duration != 0 {
		config.TempPasswordValidityDuration = time.Duration(c.TempPasswordValidityDuration.Duration)
	}
	if c.SessionSweepInterval.Duration != 0 {
		config.SessionSweepInterval = time.Duration(c.SessionSweepInterval.Duration)
	}

	return nil
}

// parseJson loads configuration from the JSON file named by the -c/-config
// flags, if any. A missing flag means nothing is loaded; an unreadable or
// malformed file panics, misconfiguration should not go unnoticed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	if err := applyJsonFile(config, jsonConfigFile); err != nil {
		panic(err)
	}
}
