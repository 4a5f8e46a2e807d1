package config

// Default values applied to any field a config file leaves unset.
const (
	defaultTransferPermits        = 3
	defaultBandwidthLimit         = "0"
	defaultBigDeleteMinItems      = 20
	defaultBigDeleteMaxCount      = 50
	defaultBigDeleteMaxPercentage = 25
)

// DefaultConfig returns a Config populated with every default value. Used
// both as the decode target (so TOML leaves unset fields at their default)
// and as the result of LoadOrDefault when no config file exists yet.
func DefaultConfig() *Config {
	return &Config{
		TransferPermits:        defaultTransferPermits,
		BandwidthLimit:         defaultBandwidthLimit,
		BigDeleteMinItems:      defaultBigDeleteMinItems,
		BigDeleteMaxCount:      defaultBigDeleteMaxCount,
		BigDeleteMaxPercentage: defaultBigDeleteMaxPercentage,
	}
}
