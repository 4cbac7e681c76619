package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/flagx"
	"github.com/dmitrijs2005/gophpool/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations are
// timex.Duration so both "168h" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	MetricsAddr                 string         `json:"metrics_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	LogLevel                    string         `json:"log_level"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LoginSkew                   timex.Duration `json:"login_skew"`
	Cooldown                    timex.Duration `json:"cooldown"`
	SettleAuthority             []string       `json:"settle_authority"`
	AirdropLimit                *uint64        `json:"airdrop_limit"`
	RateLimit                   float64        `json:"rate_limit"`
	RateBurst                   int            `json:"rate_burst"`
	DrawSchedule                *string        `json:"draw_schedule"`
	OperatorIdentity            string         `json:"operator_identity"`
	RedisAddr                   string         `json:"redis_addr"`
	DrawLockTTL                 timex.Duration `json:"draw_lock_ttl"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	ReceiptURLTTL               timex.Duration `json:"receipt_url_ttl"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.IsSet() {
		*dst = v.Duration
	}
}

// parseJson overlays the file named by -c/-config onto config. Keys that are
// absent or empty keep their current values. An unreadable or invalid file
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.LoginSkew, c.LoginSkew)
	setDuration(&config.Cooldown, c.Cooldown)
	if c.SettleAuthority != nil {
		config.SettleAuthority = c.SettleAuthority
	}
	if c.AirdropLimit != nil {
		config.AirdropLimit = *c.AirdropLimit
	}
	if c.RateLimit > 0 {
		config.RateLimit = c.RateLimit
	}
	if c.RateBurst > 0 {
		config.RateBurst = c.RateBurst
	}
	if c.DrawSchedule != nil {
		config.DrawSchedule = *c.DrawSchedule
	}
	setString(&config.OperatorIdentity, c.OperatorIdentity)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.DrawLockTTL, c.DrawLockTTL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.ReceiptURLTTL, c.ReceiptURLTTL)
}
