package config

import (
	"testing"
	"time"
)

// allEnvVars lists every env var Load reads, cleared between tests.
var allEnvVars = []string{
	"KCONFIG_DATABASE_URL", "KCONFIG_HTTP_ADDR", "KCONFIG_NATS_URL", "KCONFIG_AUTH_TOKEN",
	"KCONFIG_IDENTITY_URL", "KCONFIG_IDENTITY_TOKEN", "KCONFIG_DEFAULT_ROLE",
	"KCONFIG_REQUIRE_PROPOSALS", "KCONFIG_ALLOW_SELF_APPROVALS",
	"KCONFIG_SYNC_INTERVAL", "KCONFIG_SYNC_S3_BUCKET", "KCONFIG_SYNC_S3_ENDPOINT",
	"KCONFIG_SYNC_S3_REGION", "KCONFIG_SYNC_S3_KEY",
	"KCONFIG_SYNC_GIT_REPO", "KCONFIG_SYNC_GIT_FILE", "KCONFIG_SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
		wantRequire  bool
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "Defaults",
			env:          map[string]string{"KCONFIG_DATABASE_URL": "postgres://localhost/kconfig"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomValues",
			env: map[string]string{
				"KCONFIG_DATABASE_URL":      "postgres://db:5432/kconfig",
				"KCONFIG_HTTP_ADDR":         ":3000",
				"KCONFIG_NATS_URL":          "nats://localhost:4222",
				"KCONFIG_REQUIRE_PROPOSALS": "true",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
			wantRequire:  true,
		},
		{
			name: "BadBool",
			env: map[string]string{
				"KCONFIG_DATABASE_URL":      "postgres://localhost/kconfig",
				"KCONFIG_REQUIRE_PROPOSALS": "banana",
			},
			wantErr: true,
		},
		{
			name: "BadSyncInterval",
			env: map[string]string{
				"KCONFIG_DATABASE_URL":  "postgres://localhost/kconfig",
				"KCONFIG_SYNC_INTERVAL": "soon",
			},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			c, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if c.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", c.HTTPAddr, tc.wantHTTPAddr)
			}
			if c.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", c.NATSURL, tc.wantNATSURL)
			}
			if c.RequireProposals != tc.wantRequire {
				t.Errorf("RequireProposals = %v, want %v", c.RequireProposals, tc.wantRequire)
			}
		})
	}
}

func TestLoadSyncDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KCONFIG_DATABASE_URL", "postgres://localhost/kconfig")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.SyncInterval != 3*time.Minute {
		t.Errorf("SyncInterval = %v, want 3m", c.SyncInterval)
	}
	if c.SyncS3Region != "us-east-1" || c.SyncS3Key != "kconfig/backup.jsonl" {
		t.Errorf("S3 defaults = %q %q", c.SyncS3Region, c.SyncS3Key)
	}
	if c.SyncGitFile != "kconfig/export.jsonl" || c.SyncGitBranch != "main" {
		t.Errorf("git defaults = %q %q", c.SyncGitFile, c.SyncGitBranch)
	}
	if c.DefaultRole != "viewer" {
		t.Errorf("DefaultRole = %q, want viewer", c.DefaultRole)
	}
}
