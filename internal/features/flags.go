package features

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Optional surfaces that can be switched off per deployment. The media
// proxy and permanence pipeline are always on.
const (
	FlagDirectUpload    = "direct_upload"
	FlagRealtimeFeed    = "realtime_feed"
	FlagEventPublishing = "event_publishing"
)

// EnvPrefix is prepended to the upper-cased flag name, e.g.
// ORDERBRIDGE_FEATURE_REALTIME_FEED=false
const EnvPrefix = "ORDERBRIDGE_FEATURE_"

// Where a flag's current value came from
const (
	SourceDefault = "default"
	SourceConfig  = "config"
	SourceEnv     = "env"
	SourceRuntime = "runtime"
)

// ErrUnknownFlag wraps every lookup of a name that is not in DefaultFlags
var ErrUnknownFlag = errors.New("unknown feature flag")

type FlagDefinition struct {
	Name         string
	Description  string
	DefaultValue bool
}

var DefaultFlags = []FlagDefinition{
	{FlagDirectUpload, "Accept multipart uploads into permanent media storage", true},
	{FlagRealtimeFeed, "Serve websocket feeds of new order messages", true},
	{FlagEventPublishing, "Publish domain events to the AMQP exchange", true},
}

// Flag is a snapshot of one flag's state
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FlagManager holds the live value of every known flag. A nil manager
// reports every flag as enabled.
type FlagManager struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

func NewFlagManager() *FlagManager {
	now := time.Now()
	flags := make(map[string]Flag, len(DefaultFlags))
	for _, def := range DefaultFlags {
		flags[def.Name] = Flag{
			Name:        def.Name,
			Enabled:     def.DefaultValue,
			Description: def.Description,
			Source:      SourceDefault,
			UpdatedAt:   now,
		}
	}
	return &FlagManager{flags: flags}
}

// IsEnabled reports a flag's value. Unknown flags are off.
func (fm *FlagManager) IsEnabled(name string) bool {
	if fm == nil {
		return true
	}
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.flags[name].Enabled
}

func (fm *FlagManager) Enable(name string) error {
	return fm.apply(map[string]bool{name: true}, SourceRuntime)
}

func (fm *FlagManager) Disable(name string) error {
	return fm.apply(map[string]bool{name: false}, SourceRuntime)
}

// LoadFromConfig applies the "features" section of the config file. An
// unknown name rejects the whole section so typos don't silently leave a
// flag on. Flags absent from values keep their current state.
func (fm *FlagManager) LoadFromConfig(values map[string]bool) error {
	return fm.apply(values, SourceConfig)
}

// LoadFromEnvironment applies ORDERBRIDGE_FEATURE_<NAME>=true/false overrides.
// Unknown names and values that don't parse as booleans are skipped.
func (fm *FlagManager) LoadFromEnvironment() {
	values := make(map[string]bool)
	for _, kv := range os.Environ() {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		suffix, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			continue
		}
		values[strings.ToLower(suffix)] = enabled
	}

	fm.mu.RLock()
	for name := range values {
		if _, known := fm.flags[name]; !known {
			delete(values, name)
		}
	}
	fm.mu.RUnlock()

	_ = fm.apply(values, SourceEnv)
}

func (fm *FlagManager) apply(values map[string]bool, source string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for name := range values {
		if _, known := fm.flags[name]; !known {
			return fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
	}

	now := time.Now()
	for name, enabled := range values {
		flag := fm.flags[name]
		flag.Enabled = enabled
		flag.Source = source
		flag.UpdatedAt = now
		fm.flags[name] = flag
	}
	return nil
}

// ListFlags returns every flag sorted by name
func (fm *FlagManager) ListFlags() []Flag {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	out := make([]Flag, 0, len(fm.flags))
	for _, flag := range fm.flags {
		out = append(out, flag)
	}
	slices.SortFunc(out, func(a, b Flag) int { return strings.Compare(a.Name, b.Name) })
	return out
}
