package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides lets OPTRACK_* variables override file settings, mainly
// so credentials can stay out of the config file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.DB.Driver, "OPTRACK_DB_DRIVER")
	setStr(&cfg.DB.Path, "OPTRACK_DB_PATH")
	setStr(&cfg.DB.DSN, "OPTRACK_DB_DSN")
	setInt(&cfg.DB.MaxConns, "OPTRACK_DB_MAX_CONNS")

	setStr(&cfg.Input.Format, "OPTRACK_INPUT_FORMAT")
	setBool(&cfg.Input.GroupByDate, "OPTRACK_INPUT_GROUP_BY_DATE")

	setStr(&cfg.Output.DateFormat, "OPTRACK_OUTPUT_DATE_FORMAT")
	setInt(&cfg.Output.MaxTableWidth, "OPTRACK_OUTPUT_MAX_TABLE_WIDTH")
	setStr(&cfg.Output.Format, "OPTRACK_OUTPUT_FORMAT")

	setStr(&cfg.Lock.Type, "OPTRACK_LOCK_TYPE")
	setStr(&cfg.Lock.TTL, "OPTRACK_LOCK_TTL")
	setStr(&cfg.Lock.Redis.Addr, "OPTRACK_REDIS_ADDR")
	setStr(&cfg.Lock.Redis.Password, "OPTRACK_REDIS_PASSWORD")
	setInt(&cfg.Lock.Redis.DB, "OPTRACK_REDIS_DB")

	setStr(&cfg.Archive.Type, "OPTRACK_ARCHIVE_TYPE")
	setStr(&cfg.Archive.Dir, "OPTRACK_ARCHIVE_DIR")
	setBool(&cfg.Archive.Compress, "OPTRACK_ARCHIVE_COMPRESS")
	setStr(&cfg.Archive.S3.Endpoint, "OPTRACK_S3_ENDPOINT")
	setStr(&cfg.Archive.S3.Region, "OPTRACK_S3_REGION")
	setStr(&cfg.Archive.S3.Bucket, "OPTRACK_S3_BUCKET")
	setStr(&cfg.Archive.S3.Prefix, "OPTRACK_S3_PREFIX")
	setStr(&cfg.Archive.S3.AccessKey, "OPTRACK_S3_ACCESS_KEY")
	setStr(&cfg.Archive.S3.SecretKey, "OPTRACK_S3_SECRET_KEY")
	setBool(&cfg.Archive.S3.UseSSL, "OPTRACK_S3_USE_SSL")
	setBool(&cfg.Archive.S3.ForcePathStyle, "OPTRACK_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Log.Level, "OPTRACK_LOG_LEVEL")
	setBool(&cfg.Log.Pretty, "OPTRACK_LOG_PRETTY")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
