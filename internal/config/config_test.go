package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "test.db"},
		IMAP:     IMAPConfig{Folder: "INBOX"},
		AI:       AIConfig{SummaryMaxLen: 140},
		App: AppConfig{
			PollInterval: 5 * time.Minute,
			Retention:    12 * time.Hour,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Database = DatabaseConfig{Driver: "mysql", Host: "localhost"}
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Database.Driver = "postgres"
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.App.PollInterval = 0
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.IMAP.CutoffDate = "yesterday"
	assert.Error(t, invalid.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=UTC"
	assert.Equal(t, expected, cfg.GetDSN())
}

func TestIMAPCredentialed(t *testing.T) {
	c := IMAPConfig{Username: "me@example.com"}
	assert.False(t, c.Credentialed())

	c.Password = "secret"
	assert.True(t, c.Credentialed())

	c.Auth = "OAuth2"
	assert.True(t, c.UsesOAuth())
	assert.False(t, c.Credentialed())

	c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "refresh"
	assert.True(t, c.Credentialed())
}

func TestCutoff(t *testing.T) {
	c := IMAPConfig{}
	cutoff, err := c.Cutoff()
	assert.NoError(t, err)
	assert.True(t, cutoff.IsZero())

	c.CutoffDate = "2024-03-01"
	cutoff, err = c.Cutoff()
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cutoff)

	c.CutoffDate = "01-Mar-2024"
	cutoff, err = c.Cutoff()
	assert.NoError(t, err)
	assert.Equal(t, 2024, cutoff.Year())
}

func TestDropSet(t *testing.T) {
	c := AIConfig{DropLabels: " Marketing, fyi ,, "}
	set := c.DropSet()
	assert.Len(t, set, 2)
	assert.True(t, set["marketing"])
	assert.True(t, set["fyi"])
	assert.False(t, set["actionable"])
}
