package utils

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"appwizard/common"
)

// WaitForSSH polls the instance's SSH port until a session can run a trivial
// command, or the deadline passes. New instances routinely take a minute or
// two to accept connections.
func WaitForSSH(ctx context.Context, addr, user, keyPath string, interval, timeout time.Duration) error {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("ssh: read key %s: %v", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return fmt.Errorf("ssh: parse key %s: %v", keyPath, err)
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	deadline := time.Now().Add(timeout)
	target := net.JoinHostPort(addr, "22")
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = trySSH(target, config); lastErr == nil {
			return nil
		}
		common.Debugf("ssh: %s not ready: %v", target, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("ssh: %s not reachable within %s: %v", target, timeout, lastErr)
}

func trySSH(target string, config *ssh.ClientConfig) error {
	conn, err := ssh.Dial("tcp", target, config)
	if err != nil {
		return err
	}
	defer conn.Close()
	session, err := conn.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()
	return session.Run("true")
}
