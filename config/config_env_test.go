package config

import (
	"strings"
	"testing"
)

// TestEnvironmentVariableExpansion tests ${VAR} references inside the YAML file
func TestEnvironmentVariableExpansion(t *testing.T) {
	testCases := []struct {
		name       string
		envVars    map[string]string
		yamlConfig string
		validate   func(*testing.T, *Config)
		wantErr    bool
		errMsg     string
	}{
		{
			name: "basic env var expansion",
			envVars: map[string]string{
				"SW_TEST_KEY": "test-key-123",
			},
			yamlConfig: `
llm:
    api_key: ${SW_TEST_KEY}`,
			validate: func(t *testing.T, c *Config) {
				if c.LLM.APIKey != "test-key-123" {
					t.Errorf("API key not expanded correctly, got %s, want test-key-123", c.LLM.APIKey)
				}
			},
		},
		{
			name:    "missing env var leaves the key empty",
			envVars: map[string]string{},
			yamlConfig: `
llm:
    api_key: ${SW_MISSING_KEY}`,
			wantErr: true,
			errMsg:  "missing LLM API key",
		},
		{
			name:    "default value",
			envVars: map[string]string{},
			yamlConfig: `
llm:
    api_key: ${SW_MISSING_KEY:-fallback}
    model: ${SW_MISSING_MODEL:-llama-3.1-8b-instant}`,
			validate: func(t *testing.T, c *Config) {
				if c.LLM.APIKey != "fallback" {
					t.Errorf("default not applied, got %s", c.LLM.APIKey)
				}
				if c.LLM.Model != "llama-3.1-8b-instant" {
					t.Errorf("default not applied, got %s", c.LLM.Model)
				}
			},
		},
		{
			name: "multiple env vars in single value",
			envVars: map[string]string{
				"SW_FAMILY":  "gemini-2.0",
				"SW_VARIANT": "flash",
			},
			yamlConfig: `
llm:
    api_key: k
vision:
    model: ${SW_FAMILY}-${SW_VARIANT}`,
			validate: func(t *testing.T, c *Config) {
				if c.Vision.Model != "gemini-2.0-flash" {
					t.Errorf("Multiple env vars not expanded correctly, got %s", c.Vision.Model)
				}
			},
		},
		{
			name: "substituted values are not expanded again",
			envVars: map[string]string{
				"SW_TEST_KEY": "gsk_a$b${SW_OTHER}",
				"SW_OTHER":    "leaked",
			},
			yamlConfig: `
llm:
    api_key: ${SW_TEST_KEY}`,
			validate: func(t *testing.T, c *Config) {
				if c.LLM.APIKey != "gsk_a$b${SW_OTHER}" {
					t.Errorf("API key was expanded twice, got %s", c.LLM.APIKey)
				}
			},
		},
		{
			name:    "unterminated reference",
			envVars: map[string]string{},
			yamlConfig: `
llm:
    api_key: ${SW_TEST_KEY`,
			wantErr: true,
			errMsg:  "invalid syntax",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(strings.NewReader(tc.yamlConfig))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tc.errMsg != "" && !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("unexpected error: got %v, want %s", err, tc.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.validate(t, cfg)
		})
	}
}

// TestDeploymentEnvironmentOverrides tests the variables the service is deployed with
func TestDeploymentEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_env")
	t.Setenv("GROQ_MODEL", "llama-3.1-8b-instant")
	t.Setenv("GEMINI_API_KEY", "gem_env")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("PORT", "9001")

	cfg, err := Load(strings.NewReader(`
llm:
    api_key: from-file
    model: from-file
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "gsk_env" {
		t.Errorf("GROQ_API_KEY should override the file, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Errorf("GROQ_MODEL should override the file, got %s", cfg.LLM.Model)
	}
	if !cfg.Vision.Enabled() || cfg.Vision.Model != "gemini-2.0-flash" {
		t.Errorf("unexpected vision config: %+v", cfg.Vision)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("PORT not applied, got %d", cfg.Server.Port)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without GROQ_API_KEY")
	}

	t.Setenv("GROQ_API_KEY", "gsk_env")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "gsk_env" {
		t.Errorf("unexpected api key: %s", cfg.LLM.APIKey)
	}
	if cfg.Vision.Enabled() {
		t.Error("vision should be disabled without GEMINI_API_KEY")
	}

	t.Setenv("PORT", "eighty")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "invalid PORT") {
		t.Errorf("expected invalid PORT error, got %v", err)
	}
}
