package sshnode

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/redfish/deploy/testhelper"
)

func pidHandler(command string) (string, uint32) {
	switch command {
	case "cat /var/redfish/osd0/pid":
		return "300\n", 0
	default:
		return "", 1
	}
}

func newTestNode(t *testing.T, srv *testhelper.SSHServer, knownHostsFile string) *T {
	return New(
		WithPort(srv.Addr.Port),
		WithKeyFiles(srv.ClientKeyFile),
		WithKnownHostsFile(knownHostsFile),
		WithTimeout(5*time.Second),
	)
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		n := New()
		assert.Equal(t, DefaultUser, n.user)
		assert.Equal(t, DefaultPort, n.port)
		assert.Equal(t, DefaultTimeout, n.timeout)
	})
	t.Run("zero values keep defaults", func(t *testing.T) {
		n := New(WithUser(""), WithPort(0), WithKnownHostsFile(""))
		assert.Equal(t, DefaultUser, n.user)
		assert.Equal(t, DefaultPort, n.port)
		assert.NotEmpty(t, n.knownHostsFile)
	})
	t.Run("overrides", func(t *testing.T) {
		n := New(WithUser("redfish"), WithPort(2222))
		assert.Equal(t, "redfish", n.user)
		assert.Equal(t, 2222, n.port)
	})
}

func TestRun(t *testing.T) {
	srv := testhelper.NewSSHServer(t, pidHandler)
	knownHostsFile := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	n := newTestNode(t, srv, knownHostsFile)
	ctx := context.Background()

	t.Run("command output", func(t *testing.T) {
		client, err := n.NewClient(ctx, "127.0.0.1")
		require.NoError(t, err)
		defer client.Close()
		b, err := Run(ctx, client, "cat /var/redfish/osd0/pid")
		require.NoError(t, err)
		assert.Equal(t, "300\n", string(b))
	})

	t.Run("host key is learned", func(t *testing.T) {
		b, err := os.ReadFile(knownHostsFile)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(b), knownhosts.Normalize(srv.Addr.String())+" "))
	})

	t.Run("known host key is accepted", func(t *testing.T) {
		client, err := n.NewClient(ctx, "127.0.0.1")
		require.NoError(t, err)
		_ = client.Close()
		b, err := os.ReadFile(knownHostsFile)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(b), "\n"), "host key should be recorded once")
	})

	t.Run("non zero exit status", func(t *testing.T) {
		client, err := n.NewClient(ctx, "127.0.0.1")
		require.NoError(t, err)
		defer client.Close()
		_, err = Run(ctx, client, "cat /var/redfish/osd1/pid")
		var exitErr *ssh.ExitError
		require.True(t, errors.As(err, &exitErr), "unexpected error %v", err)
		assert.Equal(t, 1, exitErr.ExitStatus())
	})
}

func TestRunTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv := testhelper.NewSSHServer(t, func(string) (string, uint32) {
		<-release
		return "", 0
	})
	n := newTestNode(t, srv, filepath.Join(t.TempDir(), "known_hosts"))
	client, err := n.NewClient(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, client, "cat /var/redfish/mds0/pid")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error %v", err)
}

func TestConflictingHostKey(t *testing.T) {
	srv := testhelper.NewSSHServer(t, pidHandler)
	knownHostsFile := filepath.Join(t.TempDir(), "known_hosts")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(key)
	require.NoError(t, err)
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr.String())}, signer.PublicKey())
	require.NoError(t, os.WriteFile(knownHostsFile, []byte(line+"\n"), 0600))

	_, err = newTestNode(t, srv, knownHostsFile).NewClient(context.Background(), "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting")
}

func TestNewClientErrors(t *testing.T) {
	t.Run("empty hostname", func(t *testing.T) {
		_, err := New().NewClient(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("no usable key", func(t *testing.T) {
		srv := testhelper.NewSSHServer(t, pidHandler)
		badKey := filepath.Join(t.TempDir(), "id_rsa")
		require.NoError(t, os.WriteFile(badKey, []byte("not a key"), 0600))
		n := New(WithPort(srv.Addr.Port), WithKeyFiles(badKey))
		_, err := n.NewClient(context.Background(), "127.0.0.1")
		assert.ErrorContains(t, err, "no usable private key")
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := testhelper.NewSSHServer(t, pidHandler)
		n := New(WithPort(srv.Addr.Port), WithKeyFiles(srv.ClientKeyFile))
		require.NoError(t, srv.Close())
		_, err := n.NewClient(context.Background(), "127.0.0.1")
		assert.Error(t, err)
	})
}
