// Package config handles loading and validating taskledger configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, broker passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - There is no default JWT secret; startup fails until one is supplied
//
// The loaded Config is treated as read-only after startup. Components receive
// the sections they need by value.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
