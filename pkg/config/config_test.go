package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/store"
)

func validationDefaults() *layers.ValidationSettings {
	return &layers.ValidationSettings{PollInterval: "5s", MaxPolls: 10, StaleAfter: "0"}
}

func TestFromSettings_Defaults(t *testing.T) {
	cfg, err := FromSettings(
		&layers.StorageSettings{Backend: layers.BackendAzure, ConnectionString: "cs", Container: "c", RootPath: "/input/"},
		&layers.ValidationSettings{},
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.RootPath != "input" {
		t.Errorf("root path: %q", cfg.Storage.RootPath)
	}
	if cfg.Validation.Schema == nil || cfg.Validation.Schema.Reference() != "type1" {
		t.Error("default schema not applied")
	}
	if cfg.Validation.RequiredEncoding != "UTF-8-SIG" {
		t.Errorf("required encoding: %q", cfg.Validation.RequiredEncoding)
	}
	if cfg.Validation.PollInterval != 5*time.Second || cfg.Validation.MaxPolls != 10 {
		t.Errorf("poll defaults: %v x %d", cfg.Validation.PollInterval, cfg.Validation.MaxPolls)
	}
	if cfg.Validation.StaleAfter != 0 {
		t.Errorf("stale recovery should be off, got %v", cfg.Validation.StaleAfter)
	}
}

func TestFromSettings_Errors(t *testing.T) {
	cases := map[string]struct {
		storage    *layers.StorageSettings
		validation *layers.ValidationSettings
	}{
		"azure without connection string": {
			&layers.StorageSettings{Backend: layers.BackendAzure, Container: "c"},
			validationDefaults(),
		},
		"azure without container": {
			&layers.StorageSettings{Backend: layers.BackendAzure, ConnectionString: "cs"},
			validationDefaults(),
		},
		"fs without base dir": {
			&layers.StorageSettings{Backend: layers.BackendFS},
			validationDefaults(),
		},
		"unknown backend": {
			&layers.StorageSettings{Backend: "s3"},
			validationDefaults(),
		},
		"bad duration": {
			&layers.StorageSettings{Backend: layers.BackendFS, FSBaseDir: "/tmp"},
			&layers.ValidationSettings{PollInterval: "soon"},
		},
		"negative stale-after": {
			&layers.StorageSettings{Backend: layers.BackendFS, FSBaseDir: "/tmp"},
			&layers.ValidationSettings{StaleAfter: "-1h"},
		},
		"missing schema file": {
			&layers.StorageSettings{Backend: layers.BackendFS, FSBaseDir: "/tmp"},
			&layers.ValidationSettings{SchemaFile: "/does/not/exist.yaml"},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromSettings(c.storage, c.validation, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFromSettings_SchemaFileAndQueue(t *testing.T) {
	dir := t.TempDir()
	schemaFile := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaFile, []byte("types:\n  - {name: header, columns: 2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := FromSettings(
		&layers.StorageSettings{Backend: layers.BackendFS, FSBaseDir: dir},
		&layers.ValidationSettings{SchemaFile: schemaFile, StaleAfter: "2h"},
		&layers.QueueSettings{KafkaBrokers: []string{" broker:9092 ", ""}, KafkaTopic: "t", KafkaGroupID: "g"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Validation.Schema.Reference() != "header" {
		t.Errorf("schema file not loaded")
	}
	if cfg.Validation.StaleAfter != 2*time.Hour {
		t.Errorf("stale-after: %v", cfg.Validation.StaleAfter)
	}
	if len(cfg.Queue.Brokers) != 1 || cfg.Queue.Brokers[0] != "broker:9092" {
		t.Errorf("brokers: %v", cfg.Queue.Brokers)
	}
	if err := cfg.ValidateQueue(); err != nil {
		t.Error(err)
	}

	s, err := cfg.OpenStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*store.FSStore); !ok {
		t.Errorf("expected FSStore, got %T", s)
	}

	cfg.Queue.Brokers = nil
	if err := cfg.ValidateQueue(); err == nil {
		t.Error("expected error without brokers")
	}
}
