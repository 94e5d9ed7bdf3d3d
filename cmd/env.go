package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/gitlabassist/internal/config"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are empty
	Present  map[string]string // Settings that are set (secrets masked)
	Warnings []string          // Non-fatal warnings
}

// CheckConfig lists which settings are present, masking credentials.
func CheckConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing: []string{},
		Present: make(map[string]string),
	}

	required := map[string]string{
		"gitlab.token":      cfg.GitLab.Token,
		"gitlab.repository": cfg.GitLab.Repository,
	}
	switch cfg.AI.Provider {
	case "ollama", config.ProviderRules:
	default:
		required["ai.api_key"] = cfg.AI.APIKey
	}
	secrets := map[string]bool{"gitlab.token": true, "ai.api_key": true, "server.jwt_secret": true}

	optional := map[string]string{
		"gitlab.url":            cfg.GitLab.URL,
		"gitlab.default_branch": cfg.GitLab.DefaultBranch,
		"ai.provider":           cfg.AI.Provider,
		"ai.model":              cfg.AI.Model,
		"memory.store":          cfg.Memory.Store,
		"server.jwt_secret":     cfg.Server.JWTSecret,
		"log.transcripts":       cfg.Log.Transcripts,
	}

	for key, val := range required {
		if val == "" {
			result.Missing = append(result.Missing, key)
			continue
		}
		result.Present[key] = display(key, val, secrets)
	}
	for key, val := range optional {
		if val != "" {
			result.Present[key] = display(key, val, secrets)
		}
	}
	sort.Strings(result.Missing)

	if cfg.Server.JWTSecret == "" {
		result.Warnings = append(result.Warnings, "server.jwt_secret is empty, serve will refuse to start")
	}
	if !cfg.Dispatch.ScanSecrets {
		result.Warnings = append(result.Warnings, "dispatch.scan_secrets is off, file writes are not checked for credentials")
	}
	if !cfg.Dispatch.AutoBranch {
		result.Warnings = append(result.Warnings, "dispatch.auto_branch is off, writes to protected branches will be refused")
	}
	return result
}

func display(key, val string, secrets map[string]bool) string {
	if secrets[key] {
		return maskSecret(val)
	}
	return val
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(w io.Writer, result *ConfigCheckResult) {
	fmt.Fprintln(w, "=== Configuration Check ===")

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Fprintf(w, "   - %s\n", v)
		}
		fmt.Fprintln(w)
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "✓ Configured settings:")
		for _, k := range keys {
			fmt.Fprintf(w, "   - %s = %s\n", k, result.Present[k])
		}
		fmt.Fprintln(w)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warning)
	}

	if len(result.Missing) == 0 {
		fmt.Fprintln(w, "✓ All required configuration is present")
	}

	fmt.Fprintln(w, "============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
