package testhelper

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type (
	// SSHHandler returns the stdout and the exit status of the command
	// executed by a client session. It may block to simulate a hung node.
	SSHHandler func(command string) (stdout string, status uint32)

	// SSHServer is an in-process ssh server accepting any public key.
	SSHServer struct {
		Addr *net.TCPAddr

		// ClientKeyFile is a PEM encoded private key usable to log in.
		ClientKeyFile string

		// Commands records the commands executed by the clients.
		Commands []string

		mu       sync.Mutex
		listener net.Listener
		handler  SSHHandler
	}
)

// NewSSHServer starts a ssh server on a random port of the loopback
// interface. The server is stopped at the end of the test.
func NewSSHServer(t *testing.T, handler SSHHandler) *SSHServer {
	t.Helper()
	hostSigner := newSigner(t)
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &SSHServer{
		Addr:          ln.Addr().(*net.TCPAddr),
		ClientKeyFile: writeClientKey(t),
		listener:      ln,
		handler:       handler,
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, config)
		}
	}()
	return s
}

// Close stops accepting connections.
func (s *SSHServer) Close() error {
	return s.listener.Close()
}

// Executed returns a copy of the commands executed so far.
func (s *SSHServer) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.Commands...)
}

func (s *SSHServer) serve(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go s.session(channel, requests)
	}
}

func (s *SSHServer) session(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)
		s.mu.Lock()
		s.Commands = append(s.Commands, payload.Command)
		s.mu.Unlock()
		stdout, status := s.handler(payload.Command)
		_, _ = channel.Write([]byte(stdout))
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newSigner(t *testing.T) ssh.Signer {
	signer, err := ssh.NewSignerFromKey(newKey(t))
	require.NoError(t, err)
	return signer
}

func writeClientKey(t *testing.T) string {
	b, err := x509.MarshalECPrivateKey(newKey(t))
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "id_ecdsa")
	data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: b})
	require.NoError(t, os.WriteFile(p, data, 0600))
	return p
}
