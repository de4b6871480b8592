package config

import "os"

// parseEnv overlays Config with environment variables. The server is
// usually deployed with a .env file loaded at startup, so env comes before
// JSON and flags.
func parseEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.EndpointAddrGRPC, "FIELDSYNC_GRPC_ADDR")
	set(&cfg.DatabaseDSN, "FIELDSYNC_DATABASE_DSN")
	set(&cfg.SecretKey, "FIELDSYNC_SECRET_KEY")
	set(&cfg.S3RootUser, "FIELDSYNC_S3_USER")
	set(&cfg.S3RootPassword, "FIELDSYNC_S3_PASSWORD")
	set(&cfg.S3Bucket, "FIELDSYNC_S3_BUCKET")
	set(&cfg.S3Region, "FIELDSYNC_S3_REGION")
	set(&cfg.S3BaseEndpoint, "FIELDSYNC_S3_ENDPOINT")
	set(&cfg.S3PublicBaseURL, "FIELDSYNC_S3_PUBLIC_URL")
}
