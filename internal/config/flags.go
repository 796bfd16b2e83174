package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagTargetGRF    = flag.String("target-grf", "", "Target GRF archive path")
	flagAllowManual  = flag.Bool("allow-manual-patch", false, "Allow applying a patch archive manually")
	flagNoVerifySums = flag.Bool("no-verify-checksums", false, "Disable patch-list and download checksum verification (BEAM MD5 checks always run)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagTargetGRF != "" {
		cfg.Patcher.TargetGRFPath = *flagTargetGRF
	}
	if *flagAllowManual {
		cfg.Patcher.AllowManualPatch = true
	}
	if *flagNoVerifySums {
		cfg.Patcher.VerifyChecksums = false
	}
}
