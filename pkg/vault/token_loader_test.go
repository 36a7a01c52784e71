package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveToken(t *testing.T) {
	ctx := context.Background()
	env := map[string]string{"VAULT_TOKEN": "from-env"}
	getenv := func(k string) string { return env[k] }

	t.Run("explicit wins", func(t *testing.T) {
		tok, err := ResolveToken(ctx, TokenOptions{Token: "explicit", Source: TokenSourceAuto, Getenv: getenv})
		if err != nil || tok != "explicit" {
			t.Errorf("got %q, %v", tok, err)
		}
	})

	t.Run("env", func(t *testing.T) {
		tok, err := ResolveToken(ctx, TokenOptions{Source: TokenSourceEnv, Getenv: getenv})
		if err != nil || tok != "from-env" {
			t.Errorf("got %q, %v", tok, err)
		}
	})

	t.Run("env missing", func(t *testing.T) {
		_, err := ResolveToken(ctx, TokenOptions{Source: TokenSourceEnv, Getenv: func(string) string { return "" }})
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "token")
		if err := os.WriteFile(p, []byte("from-file\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		tok, err := ResolveToken(ctx, TokenOptions{Source: TokenSourceFile, File: p})
		if err != nil || tok != "from-file" {
			t.Errorf("got %q, %v", tok, err)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		if _, err := ResolveToken(ctx, TokenOptions{Source: "magic"}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSplitMount(t *testing.T) {
	mount, rest := splitMount("secret/batch-validator/prod")
	if mount != "secret" || rest != "batch-validator/prod" {
		t.Errorf("got %q, %q", mount, rest)
	}
	if mount, rest := splitMount("kv"); mount != "kv" || rest != "" {
		t.Errorf("got %q, %q", mount, rest)
	}
}
