package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"
)

const (
	configDirName   = ".patchsmith"
	apiKeysFileName = "api_keys.json"
)

// APIKeys holds stored provider credentials.
type APIKeys struct {
	OpenAI     string `json:"openai,omitempty"`
	OpenRouter string `json:"openrouter,omitempty"`
	DeepSeek   string `json:"deepseek,omitempty"`
}

// apiKeysPath returns the path to the stored keys file, creating the config
// directory if needed.
func apiKeysPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, configDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(configDir, apiKeysFileName), nil
}

// LoadAPIKeys reads the stored key file; a missing file yields empty keys.
func LoadAPIKeys() (*APIKeys, error) {
	path, err := apiKeysPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &APIKeys{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys file: %w", err)
	}
	var keys APIKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse API keys file: %w", err)
	}
	return &keys, nil
}

// SaveAPIKeys persists keys with owner-only permissions.
func SaveAPIKeys(keys *APIKeys) error {
	path, err := apiKeysPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode API keys: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write API keys file: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the key for a provider: environment variable first,
// then the stored key file, then an interactive no-echo prompt on a
// terminal. The prompted key is saved for subsequent runs.
func ResolveAPIKey(providerName string) (string, error) {
	envVar := strings.ToUpper(providerName) + "_API_KEY"
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	keys, err := LoadAPIKeys()
	if err != nil {
		return "", err
	}
	if key := keys.keyFor(providerName); key != "" {
		return key, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no API key for %s: set %s or add it to the key file", providerName, envVar)
	}

	fmt.Printf("Enter API key for %s: ", providerName)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty API key for %s", providerName)
	}

	keys.setKeyFor(providerName, key)
	if err := SaveAPIKeys(keys); err != nil {
		return "", err
	}
	return key, nil
}

func (k *APIKeys) keyFor(providerName string) string {
	switch strings.ToLower(providerName) {
	case "openai":
		return k.OpenAI
	case "openrouter":
		return k.OpenRouter
	case "deepseek":
		return k.DeepSeek
	}
	return ""
}

func (k *APIKeys) setKeyFor(providerName, key string) {
	switch strings.ToLower(providerName) {
	case "openai":
		k.OpenAI = key
	case "openrouter":
		k.OpenRouter = key
	case "deepseek":
		k.DeepSeek = key
	}
}
