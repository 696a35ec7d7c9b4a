// Package consumer relays analytics events and user properties from the host
// analytics dispatcher to a vendor analytics backend.
//
// An Adapter has two phases. It is uninitialized until Initialize succeeds for
// an enabled install type, and active from then on. Track and set calls made
// before that return ErrNotInitialized and never reach the vendor.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/shortontech/pendoconsumer/internal/vendor"
)

var (
	ErrDisallowedInstallType = errors.New("consumer: install type not enabled")
	ErrNotInitialized        = errors.New("consumer: not initialized")
	ErrAlreadyInitialized    = errors.New("consumer: already initialized")
	ErrMissingSDKKey         = errors.New("consumer: sdk key is required")
	ErrNilClient             = errors.New("consumer: vendor client is nil")
)

// GateError reports an Initialize call for an install type outside the
// configured allow-list. It matches ErrDisallowedInstallType.
type GateError struct {
	InstallType InstallType
}

func (e *GateError) Error() string {
	return fmt.Sprintf("consumer: install type %q not enabled", string(e.InstallType))
}

func (e *GateError) Is(target error) bool { return target == ErrDisallowedInstallType }

// AnalyticsConsumer is what the host dispatcher drives.
type AnalyticsConsumer interface {
	Initialize(ctx context.Context, installType InstallType, host HostContext) error
	TrackEvent(name TrimmedEventName, params map[string]ParameterValue) error
	SetUserProperty(key TrimmedUserPropertyName, value *string) error
	TrimEventName(name EventName) TrimmedEventName
	TrimUserPropertyName(name UserPropertyName) TrimmedUserPropertyName
}

// UserStore is the host's small key/value store.
type UserStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// HostContext carries the handles the host hands every consumer at startup.
type HostContext struct {
	UserStore UserStore
}

// Config is fixed at construction.
type Config struct {
	SDKKey string
	// EnabledInstallTypes defaults to AllInstallTypes when nil. An empty
	// non-nil list enables none.
	EnabledInstallTypes []InstallType
	// Redacted defaults to true when nil.
	Redacted *bool
}

type Option func(*Adapter)

func WithLogger(l hclog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// Adapter implements AnalyticsConsumer on top of a vendor.Client.
type Adapter struct {
	client   vendor.Client
	sdkKey   string
	enabled  []InstallType
	redacted bool
	logger   hclog.Logger

	mu          sync.RWMutex
	initialized bool
}

var _ AnalyticsConsumer = (*Adapter)(nil)

func New(client vendor.Client, cfg Config, opts ...Option) (*Adapter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if cfg.SDKKey == "" {
		return nil, ErrMissingSDKKey
	}

	enabled := AllInstallTypes()
	if cfg.EnabledInstallTypes != nil {
		enabled = slices.Clone(cfg.EnabledInstallTypes)
	}
	redacted := true
	if cfg.Redacted != nil {
		redacted = *cfg.Redacted
	}

	a := &Adapter{
		client:   client,
		sdkKey:   cfg.SDKKey,
		enabled:  enabled,
		redacted: redacted,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Initialize gates on the install type and then sets up the vendor once.
// A vendor setup error is returned as is and leaves the adapter uninitialized.
func (a *Adapter) Initialize(ctx context.Context, installType InstallType, host HostContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return ErrAlreadyInitialized
	}
	if !slices.Contains(a.enabled, installType) {
		return &GateError{InstallType: installType}
	}
	if err := a.client.Setup(ctx, a.sdkKey); err != nil {
		return err
	}
	a.initialized = true
	a.logger.Debug("vendor initialized", "vendor", a.client.Name(), "install_type", installType)
	return nil
}

// TrackEvent forwards name with every parameter rendered as its display
// string. A nil params map is sent as an empty one.
func (a *Adapter) TrackEvent(name TrimmedEventName, params map[string]ParameterValue) error {
	if !a.Initialized() {
		return ErrNotInitialized
	}
	properties := make(map[string]string, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		properties[k] = v.DisplayString()
	}
	return a.client.Track(string(name), properties)
}

// SetUserProperty forwards {key: value}; a nil value unsets the key.
func (a *Adapter) SetUserProperty(key TrimmedUserPropertyName, value *string) error {
	if !a.Initialized() {
		return ErrNotInitialized
	}
	var v *string
	if value != nil {
		s := *value
		v = &s
	}
	return a.client.SetVisitorData(map[string]*string{string(key): v})
}

func (a *Adapter) TrimEventName(name EventName) TrimmedEventName {
	s, trimmed := truncate(string(name), MaxEventNameLength)
	if trimmed {
		a.logTrim("event", string(name), s)
	}
	return TrimmedEventName(s)
}

func (a *Adapter) TrimUserPropertyName(name UserPropertyName) TrimmedUserPropertyName {
	s, trimmed := truncate(string(name), MaxUserPropertyNameLength)
	if trimmed {
		a.logTrim("user property", string(name), s)
	}
	return TrimmedUserPropertyName(s)
}

func (a *Adapter) logTrim(kind, from, to string) {
	a.logger.Debug("trimmed "+kind+" name", "from", from, "to", to, "length", charLen(from))
}

func (a *Adapter) Initialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized
}

// Redacted reports the configured redaction flag. The relay itself does not
// act on it.
func (a *Adapter) Redacted() bool { return a.redacted }

func (a *Adapter) EnabledInstallTypes() []InstallType { return slices.Clone(a.enabled) }
