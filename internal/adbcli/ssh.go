package adbcli

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes a lab host that has the device attached.
type SSHConfig struct {
	Addr           string // host:port
	User           string
	KeyPath        string // private key file
	KnownHostsPath string // empty disables host key verification
}

// DialSSH connects to a lab host.
func DialSSH(cfg SSHConfig) (*ssh.Client, error) {
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading ssh key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "parsing ssh key")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		hostKey, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading known_hosts")
		}
	}

	client, err := ssh.Dial("tcp", cfg.Addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", cfg.Addr)
	}
	return client, nil
}

// SSHTransport runs adb on a remote host through an established client.
type SSHTransport struct {
	Client *ssh.Client
}

// Run implements Transport.
func (t SSHTransport) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	session, err := t.Client.NewSession()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening ssh session")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(QuoteCommand(append([]string{name}, args...)))
	}()

	select {
	case err := <-done:
		return stdout.Bytes(), stderr.Bytes(), err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, nil, ctx.Err()
	}
}

// QuoteCommand joins args into a single POSIX shell command line.
func QuoteCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quote(a)
	}
	return strings.Join(quoted, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:=@%+,", r):
		default:
			safe = false
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
