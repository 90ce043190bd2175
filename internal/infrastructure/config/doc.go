// Package config handles loading and validating the Blue Hydra sensor configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Normalisation of filter lists and the active scan cadence
//   - Default value handling
//
// The resulting *Config is built once at startup and passed to every
// component; nothing mutates it afterwards.
//
// Usage:
//
//	cfg, err := config.Load(config.DefaultPath)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Bluetooth.Device)
package config
