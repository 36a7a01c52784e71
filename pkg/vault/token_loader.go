package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TokenSource defines where to resolve the Vault token from
type TokenSource string

const (
	TokenSourceAuto   TokenSource = "auto"
	TokenSourceEnv    TokenSource = "env"
	TokenSourceFile   TokenSource = "file"
	TokenSourceLookup TokenSource = "lookup"
)

// TokenSources lists the accepted token sources.
func TokenSources() []string {
	return []string{string(TokenSourceAuto), string(TokenSourceEnv), string(TokenSourceFile), string(TokenSourceLookup)}
}

// TokenOptions describes how to find a token.
type TokenOptions struct {
	// Token is used as is when set and the source is auto or env.
	Token  string
	Source TokenSource
	// File defaults to ~/.vault-token.
	File string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// ResolveToken returns a Vault token. For auto the order is explicit token,
// VAULT_TOKEN, token file, then `vault token lookup`.
func ResolveToken(ctx context.Context, opts TokenOptions) (string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	switch opts.Source {
	case TokenSourceEnv:
		if t := fromEnv(opts.Token, getenv); t != "" {
			return t, nil
		}
		return "", errors.New("no token found in environment")
	case TokenSourceFile:
		return fromFile(opts.File)
	case TokenSourceLookup:
		return lookupTokenViaCLI(ctx)
	case TokenSourceAuto, "":
		if t := fromEnv(opts.Token, getenv); t != "" {
			return t, nil
		}
		if t, err := fromFile(opts.File); err == nil && t != "" {
			return t, nil
		}
		if t, err := lookupTokenViaCLI(ctx); err == nil && t != "" {
			return t, nil
		}
		return "", errors.New("unable to resolve Vault token (tried env, file, lookup)")
	}
	return "", fmt.Errorf("unknown token source: %s", opts.Source)
}

func fromEnv(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	return getenv("VAULT_TOKEN")
}

func fromFile(path string) (string, error) {
	home, _ := os.UserHomeDir()
	switch {
	case path == "":
		path = filepath.Join(home, ".vault-token")
	case strings.HasPrefix(path, "~"):
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// lookupTokenViaCLI runs `vault token lookup -format=json` and extracts .data.id.
func lookupTokenViaCLI(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "vault", "token", "lookup", "-format=json")
	cmd.Env = os.Environ()
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to execute 'vault token lookup': %w", err)
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return "", fmt.Errorf("failed to parse lookup output: %w", err)
	}
	if payload.Data.ID == "" {
		return "", errors.New("could not extract token id from lookup output")
	}
	return payload.Data.ID, nil
}
