package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", EnvTesting)
	t.Setenv("SECRET_KEY", "")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, DBDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, MQBackendLocal, cfg.MQ.Backend)
	assert.Equal(t, MailTransportLog, cfg.Mail.Transport)
	assert.Equal(t, "[Ghusn] ", cfg.Mail.SubjectPrefix)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.True(t, cfg.Mail.SMTP.UseTLS)
	assert.Len(t, cfg.SecretKey, 32, "non-production gets a generated secret")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BASE_URL", "https://ghusn.example/")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("DB_USE_SSL", "on")
	t.Setenv("MAIL_USE_TLS", "false")
	t.Setenv("MAIL_PORT", "not-a-number")
	t.Setenv("MQ_BACKEND", MQBackendRabbitMQ)

	cfg := LoadConfig()

	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "https://ghusn.example", cfg.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.Database.UseSSL)
	assert.False(t, cfg.Mail.SMTP.UseTLS)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.Equal(t, MailTransportSMTP, cfg.Mail.Transport, "production delivers by default")
	require.NoError(t, cfg.Validate())
}

func TestValidate_LogTransportInProduction(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("MAIL_TRANSPORT", MailTransportLog)

	err := LoadConfig().Validate()
	assert.ErrorContains(t, err, "MAIL_TRANSPORT=log")

	t.Setenv("ENV", EnvDevelopment)
	t.Setenv("MAIL_TRANSPORT", MailTransportLog)
	assert.NoError(t, LoadConfig().Validate())
}

func TestLoadConfig_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("SECRET_KEY", "")

	cfg := LoadConfig()

	assert.Empty(t, cfg.SecretKey)
	assert.ErrorContains(t, cfg.Validate(), "SECRET_KEY is required")
}

func TestValidate_UnknownNames(t *testing.T) {
	t.Setenv("ENV", EnvTesting)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MQ_BACKEND", "kafka")
	t.Setenv("MAIL_TRANSPORT", "storage")
	t.Setenv("STORAGE_BACKEND", "s3")

	err := LoadConfig().Validate()

	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown DB_DRIVER "sqlite"`)
	assert.ErrorContains(t, err, `unknown MQ_BACKEND "kafka"`)
	assert.ErrorContains(t, err, `unknown STORAGE_BACKEND "s3"`)
}
