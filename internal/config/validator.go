package config

import (
	"fmt"
	"net"
	"strconv"

	cron "github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole config and returns the first problem found.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateListenAddr(cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	if cfg.Sweeper.Enabled {
		if err := v.ValidateSchedule(cfg.Sweeper.Schedule); err != nil {
			return err
		}
		if cfg.Sweeper.IdleTimeout <= 0 {
			return fmt.Errorf("sweeper idle timeout must be positive")
		}
	}
	return nil
}

// ValidateListenAddr validates a host/port pair
func (v *Validator) ValidateListenAddr(host string, port int) error {
	if host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("server port must be in 1-65535, got %d", port)
	}
	// Addresses with embedded colons must be bracketable IPv6 literals.
	if _, _, err := net.SplitHostPort(net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		return fmt.Errorf("invalid server host %q", host)
	}
	return nil
}

// ValidateSchedule validates a five-field cron expression
func (v *Validator) ValidateSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("sweeper schedule cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", expr, err)
	}
	return nil
}
