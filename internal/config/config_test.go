package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("device-abc", "/home/user/.local/share/myswing")
	original.Backend.URL = "https://project.example.co"
	original.Backend.AnonKey = "anon"
	original.Storage = StorageConfig{Type: "s3", S3Bucket: "swings", S3Prefix: "dev", S3Region: "eu-west-3"}
	original.Retry.MaxAttempts = 3

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, original.DeviceID)
	}
	if got.Backend.URL != "https://project.example.co" {
		t.Errorf("Backend.URL = %q", got.Backend.URL)
	}
	if got.Storage.Type != "s3" {
		t.Errorf("Storage.Type = %q, want %q", got.Storage.Type, "s3")
	}
	if got.Storage.S3Region != "eu-west-3" {
		t.Errorf("Storage.S3Region = %q, want %q", got.Storage.S3Region, "eu-west-3")
	}
	if got.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", got.Retry.MaxAttempts)
	}
	if got.Workflow.TargetMB != 10 {
		t.Errorf("Workflow.TargetMB = %v, want 10", got.Workflow.TargetMB)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("device-1", "/data/myswing")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceID", cfg.DeviceID, "device-1"},
		{"LogDir", cfg.LogDir, "/data/myswing/log"},
		{"KVStore.DataDir", cfg.KVStore.DataDir, "/data/myswing/db"},
		{"Credentials.IdentityPath", cfg.Credentials.IdentityPath, "/data/myswing/keys/myswing.key"},
		{"Credentials.SessionPath", cfg.Credentials.SessionPath, "/data/myswing/session.age"},
		{"Storage.Type", cfg.Storage.Type, "backend"},
		{"Backend.FunctionName", cfg.Backend.FunctionName, "analyze-swing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}

	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Retry.MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
	if cfg.Workflow.InlineWaitSeconds != 25 {
		t.Errorf("Workflow.InlineWaitSeconds = %d, want 25", cfg.Workflow.InlineWaitSeconds)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file owner-only", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sub", "myswing.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "myswing.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("error = %q, want mention of existing file", err)
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "myswing.toml")
		cfg := NewConfig("read-test", dir)
		cfg.KVStore = KVStoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "read-test" {
			t.Errorf("DeviceID = %q, want %q", got.DeviceID, "read-test")
		}
		if got.KVStore.Type != "memory" {
			t.Errorf("KVStore.Type = %q, want %q", got.KVStore.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/myswing.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("returns error for malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("device_id = ["), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected decode error")
		}
	})
}
