package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // KCONFIG_DATABASE_URL (required)
	HTTPAddr    string // KCONFIG_HTTP_ADDR (default ":8080")
	NATSURL     string // KCONFIG_NATS_URL (optional, empty = no events)
	AuthToken   string // KCONFIG_AUTH_TOKEN (optional, empty = auth disabled)

	// Identity settings
	IdentityURL   string // KCONFIG_IDENTITY_URL (collaborator service; empty = static roles)
	IdentityToken string // KCONFIG_IDENTITY_TOKEN (optional)
	DefaultRole   string // KCONFIG_DEFAULT_ROLE (default "viewer"; static provider only)

	// Governance flags used when no identity service is configured.
	RequireProposals   bool // KCONFIG_REQUIRE_PROPOSALS (default false)
	AllowSelfApprovals bool // KCONFIG_ALLOW_SELF_APPROVALS (default false)

	// Sync settings
	SyncInterval   time.Duration // KCONFIG_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // KCONFIG_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // KCONFIG_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // KCONFIG_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // KCONFIG_SYNC_S3_KEY (default "kconfig/backup.jsonl")
	SyncGitRepo    string        // KCONFIG_SYNC_GIT_REPO (local clone path; enables git when set)
	SyncGitFile    string        // KCONFIG_SYNC_GIT_FILE (default "kconfig/export.jsonl")
	SyncGitBranch  string        // KCONFIG_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("KCONFIG_DATABASE_URL"),
		HTTPAddr:       envOrDefault("KCONFIG_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("KCONFIG_NATS_URL"),
		AuthToken:      os.Getenv("KCONFIG_AUTH_TOKEN"),
		IdentityURL:    os.Getenv("KCONFIG_IDENTITY_URL"),
		IdentityToken:  os.Getenv("KCONFIG_IDENTITY_TOKEN"),
		DefaultRole:    envOrDefault("KCONFIG_DEFAULT_ROLE", "viewer"),
		SyncS3Bucket:   os.Getenv("KCONFIG_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("KCONFIG_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("KCONFIG_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("KCONFIG_SYNC_S3_KEY", "kconfig/backup.jsonl"),
		SyncGitRepo:    os.Getenv("KCONFIG_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("KCONFIG_SYNC_GIT_FILE", "kconfig/export.jsonl"),
		SyncGitBranch:  envOrDefault("KCONFIG_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("KCONFIG_DATABASE_URL is required")
	}

	var err error
	if c.RequireProposals, err = envBool("KCONFIG_REQUIRE_PROPOSALS"); err != nil {
		return nil, err
	}
	if c.AllowSelfApprovals, err = envBool("KCONFIG_ALLOW_SELF_APPROVALS"); err != nil {
		return nil, err
	}

	intervalStr := envOrDefault("KCONFIG_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("KCONFIG_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
