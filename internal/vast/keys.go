package vast

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gpurig/rig/internal/models"
)

// ValidatePublicKey checks that the given material is an SSH public key.
// Private key material is rejected outright; the remainder must carry the
// usual "ssh-<type>" stanza.
func ValidatePublicKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", &models.ValidationError{Field: "ssh_key", Message: "SSH public key is required"}
	}
	if strings.Contains(key, "PRIVATE KEY") {
		return "", &models.ValidationError{
			Field:   "ssh_key",
			Message: "that is a private key; attach the public key (single line, starts with ssh-<type>)",
		}
	}
	if !strings.HasPrefix(strings.ToLower(key), "ssh") {
		return "", &models.ValidationError{
			Field:   "ssh_key",
			Message: "does not look like an SSH public key (expected an ssh-<type> stanza)",
		}
	}
	return key, nil
}

// LoadPublicKey accepts either key material or a path to a key file and
// returns validated key material.
func LoadPublicKey(keyOrPath string) (string, error) {
	key := keyOrPath
	if _, err := os.Stat(keyOrPath); err == nil {
		data, err := os.ReadFile(keyOrPath)
		if err != nil {
			return "", fmt.Errorf("reading SSH key file %s: %w", keyOrPath, err)
		}
		key = string(data)
	}
	return ValidatePublicKey(key)
}

// AttachSSHKey attaches a public key to an instance. The key is validated
// before any request is made.
func (c *Client) AttachSSHKey(ctx context.Context, instanceID int, publicKey string) error {
	key, err := ValidatePublicKey(publicKey)
	if err != nil {
		return err
	}
	body := map[string]string{"ssh_key": key}
	path := fmt.Sprintf("/instances/%d/ssh/", instanceID)
	var resp opResult
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return err
	}
	return resp.err()
}
