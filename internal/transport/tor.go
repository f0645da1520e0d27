package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// TorDaemon runs an embedded Tor process whose SOCKS5 listener page
// analyzers can use via NewClient(WithProxy(d.SocksAddr())).
// Bootstrapping usually takes one to three minutes.
type TorDaemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	startupTimeout time.Duration
}

// TorOption configures a TorDaemon.
type TorOption func(*TorDaemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) TorOption {
	return func(d *TorDaemon) {
		d.startupTimeout = timeout
	}
}

// NewTorDaemon returns a stopped daemon. Call Start to launch it.
func NewTorDaemon(opts ...TorOption) *TorDaemon {
	d := &TorDaemon{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires. If ctx is cancelled while
// starting, the process is stopped again.
func (d *TorDaemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.controlAddr = process.ControlAddr()
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped daemon.
func (d *TorDaemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	d.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 listener, or "" when not running.
func (d *TorDaemon) SocksAddr() string {
	return d.socksAddr
}

// ControlAddr returns the control port, or "" when not running.
func (d *TorDaemon) ControlAddr() string {
	return d.controlAddr
}

// IsRunning reports whether Start succeeded and Stop was not called.
func (d *TorDaemon) IsRunning() bool {
	return d.process != nil
}

// NewClient returns a Client routed through the daemon's SOCKS5 listener.
func (d *TorDaemon) NewClient(opts ...Option) (*Client, error) {
	if !d.IsRunning() {
		return nil, ErrTorNotRunning
	}
	return NewClient(append(opts, WithProxy(d.socksAddr))...)
}
