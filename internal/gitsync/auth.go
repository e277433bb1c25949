package gitsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	gohttp "net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"

	"github.com/ghmirror/ghmirror/internal/config"
)

// AuthMethod converts a resolved credentials secret into a go-git
// transport auth method. A nil secret with a non-empty token falls
// back to token authentication, so a plain API token is enough to
// clone the account's private repositories over HTTPS.
func AuthMethod(ctx context.Context, secret any, token string) (transport.AuthMethod, error) {
	if secret == nil {
		if token == "" {
			return nil, nil
		}
		secret = config.SecretTokenAuth{Token: token}
	}

	switch value := secret.(type) {
	case config.SecretBasicAuth:
		return &http.BasicAuth{Username: value.Username, Password: value.Password}, nil

	case config.SecretTokenAuth:
		// GitHub expects tokens as the password of a basic auth
		// exchange with the fixed x-access-token user.
		return &http.BasicAuth{Username: "x-access-token", Password: value.Token}, nil

	case config.SecretGitHubApp:
		token, err := appToken(ctx, value)
		if err != nil {
			return nil, err
		}
		return &http.BasicAuth{Username: "x-access-token", Password: token}, nil

	case config.SecretSSHKey:
		return newSSHAuth(value.Key, value.Passphrase, value.Fingerprints)

	default:
		return nil, fmt.Errorf("unsupported authentication type for git: %T", value)
	}
}

// appToken mints an installation token for a GitHub App credential.
func appToken(ctx context.Context, app config.SecretGitHubApp) (string, error) {
	tr, err := ghinstallation.New(gohttp.DefaultTransport, app.IntegrationID, app.InstallationID, []byte(app.PrivateKey))
	if err != nil {
		return "", err
	}

	return tr.Token(ctx)
}

func newSSHAuth(key string, passphrase string, fingerprints []string) (gitssh.AuthMethod, error) {
	var signer ssh.Signer
	var err error
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(key), []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey([]byte(key))
	}
	if err != nil {
		return nil, err
	}

	if len(fingerprints) == 0 {
		return nil, errors.New("ssh: at least one fingerprint is required when using ssh_key authentication")
	}

	return &gitssh.PublicKeys{
		User:   "git",
		Signer: signer,
		HostKeyCallbackHelper: gitssh.HostKeyCallbackHelper{
			HostKeyCallback: checkFingerprints(fingerprints),
		},
	}, nil
}

func checkFingerprints(fingerprints []string) ssh.HostKeyCallback {
	m := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		m[fp] = true
	}

	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		fingerprint := ssh.FingerprintSHA256(key)
		if !m[fingerprint] {
			return fmt.Errorf("ssh: unknown fingerprint (%s) for %s", fingerprint, hostname)
		}
		return nil
	}
}
