package ssh

import (
	"crypto/dsa" //nolint:staticcheck // legacy DSS keys are still seen in the wild
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	xssh "golang.org/x/crypto/ssh"
)

// PassphrasePrompt returns the passphrase for the provided key path.
type PassphrasePrompt func(keyPath string) (string, error)

// keyFormat pairs a key type name with a matcher for the parsed key
// material. Formats are tried in a fixed order; no inheritance hierarchy,
// just a sequence of attempts.
type keyFormat struct {
	Name  string
	Match func(raw interface{}) (interface{}, bool)
}

// Supported key types, in detection order.
var keyFormats = []keyFormat{
	{
		Name: "ed25519",
		Match: func(raw interface{}) (interface{}, bool) {
			switch key := raw.(type) {
			case ed25519.PrivateKey:
				return key, true
			case *ed25519.PrivateKey:
				return *key, true
			}
			return nil, false
		},
	},
	{
		Name: "ecdsa",
		Match: func(raw interface{}) (interface{}, bool) {
			key, ok := raw.(*ecdsa.PrivateKey)
			return key, ok
		},
	},
	{
		Name: "rsa",
		Match: func(raw interface{}) (interface{}, bool) {
			key, ok := raw.(*rsa.PrivateKey)
			return key, ok
		},
	},
	{
		Name: "dss",
		Match: func(raw interface{}) (interface{}, bool) {
			key, ok := raw.(*dsa.PrivateKey)
			return key, ok
		},
	},
}

// LoadSigner loads a private key from disk, auto-detecting its type.
// Encrypted keys trigger the prompt; a nil prompt yields
// ErrPassphraseRequired.
func LoadSigner(path string, prompt PassphrasePrompt) (xssh.Signer, string, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read private key: %w", err)
	}

	raw, err := xssh.ParseRawPrivateKey(keyBytes)
	if err != nil {
		var missing *xssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, "", fmt.Errorf("%w: parse private key %s: %v", ErrAuthentication, path, err)
		}

		if prompt == nil {
			return nil, "", ErrPassphraseRequired
		}
		passphrase, promptErr := prompt(path)
		if promptErr != nil {
			return nil, "", fmt.Errorf("passphrase prompt failed: %w", promptErr)
		}
		if passphrase == "" {
			return nil, "", ErrPassphraseRequired
		}

		raw, err = xssh.ParseRawPrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
		if err != nil {
			return nil, "", fmt.Errorf("%w: parse private key with passphrase: %v", ErrAuthentication, err)
		}
	}

	for _, format := range keyFormats {
		key, ok := format.Match(raw)
		if !ok {
			continue
		}
		signer, err := xssh.NewSignerFromKey(key)
		if err != nil {
			return nil, "", fmt.Errorf("%w: build %s signer: %v", ErrAuthentication, format.Name, err)
		}
		return signer, format.Name, nil
	}

	return nil, "", fmt.Errorf("%w: unsupported private key type %T in %s", ErrAuthentication, raw, path)
}

// DefaultPassphrasePrompt reads a passphrase from stdin without echoing input.
func DefaultPassphrasePrompt(path string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", path)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(passphrase), nil
}
