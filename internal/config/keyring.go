package config

import (
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "defectset"

	// KeyringJiraTokenItem is the key for the Jira API token
	KeyringJiraTokenItem = "jira-api-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *logrus.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager(logger *logrus.Logger) *KeyringManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KeyringManager{logger: logger}
}

// SetJiraToken stores the Jira token in the OS keychain
// - macOS: Keychain Access.app → "defectset" → "jira-api-token"
// - Windows: Credential Manager → "defectset"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) SetJiraToken(token string) error {
	if token == "" {
		return fmt.Errorf("jira token cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringJiraTokenItem, token); err != nil {
		km.logger.WithError(err).Error("Failed to save Jira token to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.WithField("service", KeyringService).Info("Jira token saved to keychain")
	return nil
}

// GetJiraToken retrieves the Jira token; "" when none is stored
func (km *KeyringManager) GetJiraToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringJiraTokenItem)
	if stderrors.Is(err, keyring.ErrNotFound) {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).Error("Failed to get Jira token from keychain")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("Jira token retrieved from keychain")
	return token, nil
}

// DeleteJiraToken removes the Jira token from the OS keychain
func (km *KeyringManager) DeleteJiraToken() error {
	err := keyring.Delete(KeyringService, KeyringJiraTokenItem)
	if stderrors.Is(err, keyring.ErrNotFound) {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.WithError(err).Error("Failed to delete Jira token from keychain")
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("Jira token deleted from keychain")
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == nil || stderrors.Is(err, keyring.ErrNotFound) {
		return true
	}
	km.logger.WithError(err).Debug("Keychain not available")
	return false
}

// MaskToken masks a token for display: first 4 and last 4 characters
func MaskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", token[:4], token[len(token)-4:])
}
