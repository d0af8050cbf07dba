package sshnode

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/redfish/deploy/util/funcopt"
)

type (
	// T holds the ssh client settings used to reach a cluster node.
	T struct {
		user           string
		port           int
		keyFiles       []string
		knownHostsFile string
		timeout        time.Duration
	}
)

const (
	DefaultUser    = "root"
	DefaultPort    = 22
	DefaultTimeout = 10 * time.Second
)

// knownHostsMu serializes the known_hosts file updates
var knownHostsMu sync.Mutex

func New(opts ...funcopt.O) *T {
	t := &T{
		user:           DefaultUser,
		port:           DefaultPort,
		knownHostsFile: os.ExpandEnv("$HOME/.ssh/known_hosts"),
		timeout:        DefaultTimeout,
	}
	_ = funcopt.Apply(t, opts...)
	return t
}

func WithUser(s string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		if s != "" {
			t.user = s
		}
		return nil
	})
}

func WithPort(n int) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		if n > 0 {
			t.port = n
		}
		return nil
	})
}

// WithKeyFiles sets the private key files. When unset, the ~/.ssh/id_*
// files are used.
func WithKeyFiles(l ...string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.keyFiles = append(t.keyFiles, l...)
		return nil
	})
}

func WithKnownHostsFile(s string) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		if s != "" {
			t.knownHostsFile = s
		}
		return nil
	})
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) funcopt.O {
	return funcopt.F(func(i interface{}) error {
		t := i.(*T)
		t.timeout = d
		return nil
	})
}

func (t *T) User() string {
	return t.user
}

func (t *T) Port() int {
	return t.port
}

// NewClient returns a ssh client connected to the node n. The dial is
// aborted when ctx is done.
func (t *T) NewClient(ctx context.Context, n string) (*ssh.Client, error) {
	if n == "" {
		return nil, errors.New("empty hostname is not allowed")
	}
	ip := net.ParseIP(n)
	if ip == nil {
		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", n)
		if err != nil {
			return nil, err
		} else if len(ips) == 0 {
			return nil, fmt.Errorf("no ip address found for host %s", n)
		}
		ip = ips[0]
	}
	signers, err := t.loadSigners()
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User: t.user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signers...),
		},
		HostKeyCallback: t.AddingKnownHostCallback,
		Timeout:         t.timeout,
	}
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(t.port))
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// the handshake is done, the session deadlines are handled by Run
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *T) loadSigners() ([]ssh.Signer, error) {
	var signers []ssh.Signer
	privKeyFiles := t.keyFiles
	if len(privKeyFiles) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		l, err := filepath.Glob(filepath.Join(home, ".ssh/id_*"))
		if err != nil {
			return nil, err
		}
		for _, privKeyFile := range l {
			if strings.Contains(filepath.Base(privKeyFile), ".") {
				continue
			}
			privKeyFiles = append(privKeyFiles, privKeyFile)
		}
	}
	for _, privKeyFile := range privKeyFiles {
		if key, err := os.ReadFile(privKeyFile); err == nil {
			if signer, err := ssh.ParsePrivateKey(key); err == nil {
				signers = append(signers, signer)
			}
		}
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no usable private key found")
	}
	return signers, nil
}

// Run executes the command s in a new session of client and returns its
// stdout. A command exiting non-zero returns a *ssh.ExitError. The session
// is closed when ctx is done, and ctx.Err() is returned.
func Run(ctx context.Context, client *ssh.Client, s string) ([]byte, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "new ssh session")
	}
	defer session.Close()
	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	done := make(chan error, 1)
	go func() {
		done <- session.Run(s)
	}()
	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, ctx.Err()
	case err := <-done:
		return stdout.Bytes(), err
	}
}

// AddingKnownHostCallback accepts host keys found in the known hosts file,
// learns the keys of unknown hosts, and rejects changed keys.
func (t *T) AddingKnownHostCallback(host string, remote net.Addr, key ssh.PublicKey) error {
	var keyErr *knownhosts.KeyError

	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	callback, err := knownhosts.New(t.knownHostsFile)

	if os.IsNotExist(err) {
		if err := touch(t.knownHostsFile); err != nil {
			return err
		}
		callback, err = knownhosts.New(t.knownHostsFile)
	}

	if err != nil {
		return err
	}
	err = callback(host, remote, key)
	if err == nil {
		return nil
	}
	v := errors.As(err, &keyErr)
	if v && len(keyErr.Want) > 0 {
		return fmt.Errorf("%s: conflicting %s +%d", keyErr, keyErr.Want[0].Filename, keyErr.Want[0].Line)
	}
	if v && len(keyErr.Want) == 0 {
		return t.addKnownHost(remote, key)
	}
	return err
}

func (t *T) addKnownHost(remote net.Addr, key ssh.PublicKey) error {
	f, err := os.OpenFile(t.knownHostsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	knownHost := knownhosts.Normalize(remote.String())
	_, err = f.WriteString(knownhosts.Line([]string{knownHost}, key) + "\n")
	return err
}

func touch(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}
