// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/crypto/ssh"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
)

var ErrUnreachable = errors.New("instrument unreachable")

// SSH runs the configured launch and switch commands on the instrument, one
// connection per call.
type SSH struct {
	cfg config.Instrument
}

func NewSSH(cfg config.Instrument) *SSH {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SSH{cfg: cfg}
}

func (s SSH) address() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s SSH) clientConfig() (*ssh.ClientConfig, error) {
	cc := &ssh.ClientConfig{
		User:            s.cfg.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // instruments regenerate host keys on reflash
		Timeout:         s.cfg.Timeout,
	}
	if s.cfg.KeyFile != "" {
		key, err := os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read instrument key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse instrument key: %w", err)
		}
		cc.Auth = append(cc.Auth, ssh.PublicKeys(signer))
	}
	if s.cfg.Password != "" {
		cc.Auth = append(cc.Auth, ssh.Password(s.cfg.Password))
	}
	if len(cc.Auth) == 0 {
		return nil, fmt.Errorf("instrument needs a password or a key file")
	}
	return cc, nil
}

func (s SSH) connect(ctx context.Context) (*ssh.Client, error) {
	cc, err := s.clientConfig()
	if err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.address())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.address(), cc)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake failed: %w", ErrUnreachable, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (s SSH) Find(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	context.CtxGetLog(ctx).Info("Instrument found", "address", client.RemoteAddr().String())
	return client.Close()
}

// ReadIP returns the address the instrument answered from.
func (s SSH) ReadIP(ctx context.Context) (string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()
	if addr, ok := client.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String(), nil
	}
	host, _, err := net.SplitHostPort(client.RemoteAddr().String())
	return host, err
}

func (s SSH) SwitchToTestApp(ctx context.Context) error {
	return s.run(ctx, s.cfg.SwitchCommand)
}

func (s SSH) RunTestApp(ctx context.Context) error {
	return s.run(ctx, s.cfg.LaunchCommand)
}

func (s SSH) run(ctx context.Context, command string) error {
	log := context.CtxGetLog(ctx)
	if command == "" {
		log.Warn("No instrument command configured, skipping")
		return nil
	}
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("unable to open instrument session: %w", err)
	}
	defer func() { _ = session.Close() }()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	log.Info("Running instrument command", "cmd", command)
	if err := session.Run(command); err != nil {
		return fmt.Errorf("instrument command %q failed: %w: %s", command, err, out.String())
	}
	log.Debug("Instrument command completed", "output", out.String())
	return nil
}
