package agent

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh/agent"
)

// serveKeyring runs an in-memory agent on a fresh unix socket.
func serveKeyring(t *testing.T, comments ...string) string {
	t.Helper()

	// Unix socket paths are length-limited; keep the directory short.
	dir, err := os.MkdirTemp("", "agent")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s")

	keyring := agent.NewKeyring()
	for _, comment := range comments {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		if err := keyring.Add(agent.AddedKey{PrivateKey: priv, Comment: comment}); err != nil {
			t.Fatal(err)
		}
	}

	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return socket
}

func TestProbe(t *testing.T) {
	socket := serveKeyring(t, "work", "personal")

	status, err := NewProber().Probe(context.Background(), socket)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(status.Identities) != 2 {
		t.Fatalf("got %d identities, want 2", len(status.Identities))
	}
	for _, id := range status.Identities {
		if id.Type != "ssh-ed25519" {
			t.Errorf("Type = %q", id.Type)
		}
		if !strings.HasPrefix(id.Fingerprint, "SHA256:") {
			t.Errorf("Fingerprint = %q", id.Fingerprint)
		}
	}
}

func TestProbe_EmptyAgent(t *testing.T) {
	status, err := NewProber().Probe(context.Background(), serveKeyring(t))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(status.Identities) != 0 {
		t.Errorf("got %d identities, want 0", len(status.Identities))
	}
}

func TestProbe_NoSocket(t *testing.T) {
	if _, err := NewProber().Probe(context.Background(), ""); !errors.Is(err, ErrNoSocket) {
		t.Errorf("Probe() error = %v, want ErrNoSocket", err)
	}
}

func TestProbe_SocketNeverAppears(t *testing.T) {
	p := &Prober{Wait: 150 * time.Millisecond, Interval: 20 * time.Millisecond}

	start := time.Now()
	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.sock"))
	if err == nil {
		t.Fatal("Probe() error = nil, want connect failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Probe() took %v, want it bounded by Wait", elapsed)
	}
}
