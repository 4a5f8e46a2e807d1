package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwynfr/drivesync/internal/driveid"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Account = "user@example.com"
	cfg.Drive = "personal:user@example.com"
	cfg.DriveID = driveid.New("b!abcdefghijklmnop")
	cfg.TokenPath = "/tmp/token.json"
	cfg.DBPath = "/tmp/drivesync.db"
	cfg.Folders = []Folder{{Remote: "/Documents", Local: "/home/user/Documents"}}

	return cfg
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_MissingAccount(t *testing.T) {
	cfg := validConfig()
	cfg.Account = ""
	assert.Error(t, Validate(cfg))
}

func TestValidate_BadDrive(t *testing.T) {
	cfg := validConfig()
	cfg.Drive = "not-a-canonical-id"
	assert.Error(t, Validate(cfg))
}

func TestValidate_MissingDriveID(t *testing.T) {
	cfg := validConfig()
	cfg.DriveID = driveid.ID{}
	assert.Error(t, Validate(cfg))
}

func TestValidate_NoFolders(t *testing.T) {
	cfg := validConfig()
	cfg.Folders = nil
	assert.ErrorIs(t, Validate(cfg), ErrNoFolders)
}

func TestValidate_BadBandwidthLimit(t *testing.T) {
	cfg := validConfig()
	cfg.BandwidthLimit = "fast"
	assert.Error(t, Validate(cfg))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.TransferPermits = 5
	cfg.BandwidthLimit = "10MB/s"

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, cfg.Account, got.Account)
	assert.Equal(t, cfg.Drive, got.Drive)
	assert.Equal(t, cfg.TransferPermits, got.TransferPermits)
	assert.Equal(t, cfg.Folders, got.Folders)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, err := LoadOrDefault(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestCanonicalDrive(t *testing.T) {
	cfg := validConfig()

	cid, err := cfg.CanonicalDrive()
	require.NoError(t, err)
	assert.True(t, cid.IsPersonal())
}
