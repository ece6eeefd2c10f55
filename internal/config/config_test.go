package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequiresAllPositionalArgs(t *testing.T) {
	cfg := Config{CLIArgs: CLIArgs{Address: "0.0.0.0", Port: "8080"}}
	assert.Error(t, cfg.Validate())

	cfg.DocRoot = "./static"
	assert.NoError(t, cfg.Validate())
}

func TestDSNFormat(t *testing.T) {
	cfg := Config{Env: Env{
		MySQLUsername: "u",
		MySQLPassword: "p",
		MySQLHost:     "db",
		MySQLPort:     3306,
		MySQLDatabase: "servertech_chat",
	}}
	assert.Equal(t, "u:p@tcp(db:3306)/servertech_chat?parseTime=true", cfg.DSN())
}
