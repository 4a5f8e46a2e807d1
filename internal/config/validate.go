package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arwynfr/drivesync/internal/driveid"
)

// ErrNoFolders is returned by Validate when a config has no synced folders
// configured — there is nothing for Engine.RunOnce to reconcile.
var ErrNoFolders = errors.New("config: no folders configured")

// Validate checks a Config for the minimum shape RunOnce needs: a resolvable
// account and drive, at least one folder pair, and sane numeric ranges.
func Validate(cfg *Config) error {
	if cfg.Account == "" {
		return errors.New("config: account is required")
	}

	if _, err := driveid.NewCanonicalID(cfg.Drive); err != nil {
		return fmt.Errorf("config: drive: %w", err)
	}

	if cfg.DriveID.IsZero() {
		return errors.New("config: drive_id is required")
	}

	if cfg.TokenPath == "" {
		return errors.New("config: token_path is required")
	}

	if cfg.DBPath == "" {
		return errors.New("config: db_path is required")
	}

	if len(cfg.Folders) == 0 {
		return ErrNoFolders
	}

	for i, f := range cfg.Folders {
		if f.Remote == "" || f.Local == "" {
			return fmt.Errorf("config: folders[%d]: remote and local are both required", i)
		}
	}

	if cfg.TransferPermits < 1 {
		return errors.New("config: transfer_permits must be at least 1")
	}

	// bandwidth_limit carries an optional "/s" suffix (e.g. "10MB/s"), which
	// ParseSize itself does not understand — strip it before validating,
	// matching sync.NewBandwidthLimiter's own parsing.
	rate := strings.TrimSuffix(strings.ToLower(cfg.BandwidthLimit), "/s")
	if _, err := ParseSize(rate); err != nil {
		return fmt.Errorf("config: bandwidth_limit: %w", err)
	}

	return nil
}
