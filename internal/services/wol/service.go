// Package wol wakes the database host before a pass.
package wol

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/juju/clock"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(broadcastIP string, mac net.HardwareAddr) error
}

// Dialer probes the target address.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultClient is the default implementation using mdlayher/wol.
type DefaultClient struct{}

// Wake sends a magic packet to the specified MAC address.
func (c *DefaultClient) Wake(broadcastIP string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	ip := net.ParseIP(broadcastIP)
	if ip == nil {
		return fmt.Errorf("invalid broadcast IP: %s", broadcastIP)
	}

	if err := client.Wake(net.JoinHostPort(ip.String(), "9"), mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}

	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient Client
	dialer    Dialer
	clock     clock.Clock
	logger    zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return NewWithClients(logger, &DefaultClient{}, &net.Dialer{Timeout: 5 * time.Second}, clock.WallClock)
}

// NewWithClients creates a new WOL service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, wolClient Client, dialer Dialer, clk clock.Clock) *Impl {
	return &Impl{
		wolClient: wolClient,
		dialer:    dialer,
		clock:     clk,
		logger:    logger,
	}
}

// Wake sends a WOL packet and, when TargetAddr is set, waits until the
// database port accepts connections.
func (s *Impl) Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error) {
	result := &models.WOLResult{}
	start := s.clock.Now()

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
		return result, nil
	}

	s.logger.Info().
		Str("mac", cfg.MACAddress).
		Str("broadcast", cfg.BroadcastIP).
		Msg("sending WOL packet")

	if err := s.wolClient.Wake(cfg.BroadcastIP, mac); err != nil {
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct
	}
	result.PacketSent = true

	if cfg.TargetAddr == "" {
		result.WaitDuration = s.clock.Now().Sub(start)
		result.TargetReady = true
		return result, nil
	}

	s.logger.Info().
		Str("target", cfg.TargetAddr).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for database host to accept connections")

	if err := s.waitForTarget(ctx, cfg); err != nil {
		result.WaitDuration = s.clock.Now().Sub(start)
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	if cfg.StabilizeWait > 0 {
		s.logger.Debug().Dur("wait", cfg.StabilizeWait).Msg("waiting for database host to stabilize")
		select {
		case <-ctx.Done():
			result.WaitDuration = s.clock.Now().Sub(start)
			result.Error = ctx.Err()
			return result, nil
		case <-s.clock.After(cfg.StabilizeWait):
		}
	}

	result.TargetReady = true
	result.WaitDuration = s.clock.Now().Sub(start)

	s.logger.Info().
		Dur("duration", result.WaitDuration).
		Msg("database host is ready")

	return result, nil
}

func (s *Impl) waitForTarget(ctx context.Context, cfg models.WOLConfig) error {
	deadline := s.clock.Now().Add(cfg.Timeout)

	for {
		conn, err := s.dialer.DialContext(ctx, "tcp", cfg.TargetAddr)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Debug().Err(err).Msg("database host not ready yet")

		if !s.clock.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for %s", cfg.TargetAddr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(cfg.PollInterval):
		}
	}
}
