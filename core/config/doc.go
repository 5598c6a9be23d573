// Package config provides configuration management for table-sync.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each
// section and are registered recursively so every key can be overridden from
// the environment (DATABASE_HOST -> database.host).
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Database: driver and connection details
//   - Storage: S3/MinIO credentials for remote desired-state documents and reports
//   - Log: Logging level and format
//   - Sync: default key column, source, report target and transaction mode
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.KeyColumn)
package config
