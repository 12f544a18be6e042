package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/schedkeeper/internal/flagx"
	"github.com/dmitrijs2005/schedkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "30m" style
// strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	Env                         string         `json:"env"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	MasterKey                   string         `json:"master_key"`
	MasterKeyPassphrase         string         `json:"master_key_passphrase"`
	MasterKeySalt               string         `json:"master_key_salt"`
	MasterKeyS3Object           string         `json:"master_key_s3_object"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	MaxFailedLogins             int            `json:"max_failed_logins"`
	LockoutDuration             timex.Duration `json:"lockout_duration"`
	ResetTokenTTL               timex.Duration `json:"reset_token_ttl"`
	ResetRequestsPerMinute      int            `json:"reset_requests_per_minute"`
	ExposeResetToken            bool           `json:"expose_reset_token"`
	AMQPURL                     string         `json:"amqp_url"`
	ResetQueue                  string         `json:"reset_queue"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                    c.HTTPAddr,
		Env:                         c.Env,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		MasterKey:                   c.MasterKey,
		MasterKeyPassphrase:         c.MasterKeyPassphrase,
		MasterKeySalt:               c.MasterKeySalt,
		MasterKeyS3Object:           c.MasterKeyS3Object,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		MaxFailedLogins:             c.MaxFailedLogins,
		LockoutDuration:             timex.Duration{Duration: c.LockoutDuration},
		ResetTokenTTL:               timex.Duration{Duration: c.ResetTokenTTL},
		ResetRequestsPerMinute:      c.ResetRequestsPerMinute,
		ExposeResetToken:            c.ExposeResetToken,
		AMQPURL:                     c.AMQPURL,
		ResetQueue:                  c.ResetQueue,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.Env = j.Env
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.MasterKey = j.MasterKey
	c.MasterKeyPassphrase = j.MasterKeyPassphrase
	c.MasterKeySalt = j.MasterKeySalt
	c.MasterKeyS3Object = j.MasterKeyS3Object
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.MaxFailedLogins = j.MaxFailedLogins
	c.LockoutDuration = j.LockoutDuration.Duration
	c.ResetTokenTTL = j.ResetTokenTTL.Duration
	c.ResetRequestsPerMinute = j.ResetRequestsPerMinute
	c.ExposeResetToken = j.ExposeResetToken
	c.AMQPURL = j.AMQPURL
	c.ResetQueue = j.ResetQueue
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// absent from the file keep their current values. An unreadable or invalid
// file panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
