// Package agent checks that the running ssh-agent answers on its socket.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ErrNoSocket means no socket path is known, usually because
// XDG_RUNTIME_DIR is unset.
var ErrNoSocket = errors.New("no agent socket path")

// Identity is one key held by the agent.
type Identity struct {
	Type        string
	Fingerprint string
	Comment     string
}

// Status is what the agent reported.
type Status struct {
	Socket     string
	Identities []Identity
}

// Prober connects to an agent socket.
type Prober struct {
	// Wait bounds how long to wait for the socket to appear.
	Wait time.Duration
	// Interval is the delay between attempts.
	Interval time.Duration
}

// NewProber returns a Prober with short defaults suited to a freshly
// started unit.
func NewProber() *Prober {
	return &Prober{Wait: 2 * time.Second, Interval: 100 * time.Millisecond}
}

// Probe lists the identities held by the agent at socket.
func (p *Prober) Probe(ctx context.Context, socket string) (*Status, error) {
	if socket == "" {
		return nil, ErrNoSocket
	}

	conn, err := p.dial(ctx, socket)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh-agent: %w", err)
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return nil, fmt.Errorf("list agent keys: %w", err)
	}

	status := &Status{Socket: socket}
	for _, key := range keys {
		status.Identities = append(status.Identities, Identity{
			Type:        key.Type(),
			Fingerprint: ssh.FingerprintSHA256(key),
			Comment:     key.Comment,
		})
	}
	return status, nil
}

// dial retries while the socket does not exist yet.
func (p *Prober) dial(ctx context.Context, socket string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Wait)
	defer cancel()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", socket)
		if err == nil {
			return conn, nil
		}
		if _, statErr := os.Stat(socket); !errors.Is(statErr, fs.ErrNotExist) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(p.Interval):
		}
	}
}
