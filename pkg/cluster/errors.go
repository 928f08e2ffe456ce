package cluster

import (
	"errors"
	"fmt"
)

var (
	// ErrTornDown is returned by mutations on a cluster or registry after teardown.
	ErrTornDown = errors.New("cluster torn down")
	// ErrInvalidRole is returned when a member would be assigned RoleInvalid.
	ErrInvalidRole = errors.New("invalid role")
	// ErrNilCallback is returned by NotifyAdd when no callback is given.
	ErrNilCallback = errors.New("nil notification callback")
	// ErrCallbackUnavailable is reported when a subscription has no callback at delivery time.
	ErrCallbackUnavailable = errors.New("notification callback unavailable")
)

// ConfigurationError reports a rejected cluster definition. The message
// always carries the offending mask.
type ConfigurationError struct {
	Mnemonic string
	Mask     string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Mnemonic == "" {
		return fmt.Sprintf("cluster configuration (mask %q): %s", e.Mask, e.Reason)
	}
	return fmt.Sprintf("cluster %q configuration (mask %q): %s", e.Mnemonic, e.Mask, e.Reason)
}

func configError(cfg Config, format string, args ...interface{}) error {
	return &ConfigurationError{
		Mnemonic: cfg.Mnemonic,
		Mask:     cfg.GroupMask,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// SubscriberError wraps a failure raised by a notification callback.
type SubscriberError struct {
	Cluster      string
	Subscription uint64
	Group        string
	Key          string
	Err          error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %d on cluster %q failed for %s/%s: %v",
		e.Subscription, e.Cluster, e.Group, e.Key, e.Err)
}

func (e *SubscriberError) Unwrap() error {
	return e.Err
}
