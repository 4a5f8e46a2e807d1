// Package config loads and writes the TOML configuration file that binds
// one drivesync account to a drive, a set of synced folder pairs, and the
// safety/performance knobs the sync engine consumes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/arwynfr/drivesync/internal/driveid"
)

// Folder pairs one remote folder with the local directory it mirrors.
// Remote is stored in its display form; the sync engine canonicalizes
// it with pathkey.Canonical before use.
type Folder struct {
	Remote string `toml:"remote"`
	Local  string `toml:"local"`
}

// Config is the full resolved configuration for one account.
type Config struct {
	// Account is the raw account id (typically an email) passed to
	// accountid.Hash and used as the RemoteDriveClient account parameter.
	Account string `toml:"account"`

	// Drive is the canonical drive identifier this account syncs against,
	// e.g. "personal:user@example.com" or "business:user@contoso.com". It
	// is the human-facing identity; DriveID below is the opaque Graph API
	// identifier the remote client actually registers sessions against.
	Drive   string     `toml:"drive"`
	DriveID driveid.ID `toml:"drive_id"`

	TokenPath string `toml:"token_path"`
	DBPath    string `toml:"db_path"`

	Folders []Folder `toml:"folders"`

	TransferPermits int    `toml:"transfer_permits"`
	BandwidthLimit  string `toml:"bandwidth_limit"`
	DetailedLogging bool   `toml:"detailed_logging"`

	BigDeleteMinItems      int `toml:"big_delete_min_items"`
	BigDeleteMaxCount      int `toml:"big_delete_max_count"`
	BigDeleteMaxPercentage int `toml:"big_delete_max_percentage"`
}

// CanonicalDrive parses Drive as a driveid.CanonicalID, validating its format.
func (c *Config) CanonicalDrive() (driveid.CanonicalID, error) {
	return driveid.NewCanonicalID(c.Drive)
}

// Load reads and parses a TOML config file, applying DefaultConfig's values
// for any field the file leaves unset.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	logger.Debug("config: loaded", "path", path, "account", cfg.Account, "folders", len(cfg.Folders))

	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns DefaultConfig
// unvalidated — the caller is expected to fill in Account/Drive/Folders
// interactively (e.g. the login and folder-add commands) before the first
// sync round.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path, logger)
}
