package invoke

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	ptls "github.com/getmockd/grpcprobe/pkg/tls"
)

// MetadataEntry is one key/value pair sent as call metadata. Disabled entries
// and entries with an empty key are never sent.
type MetadataEntry struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the entry should be sent. Entries are enabled
// unless explicitly switched off.
func (e MetadataEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Environment is one deployment a call can target.
type Environment struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`

	// Plaintext disables TLS.
	Plaintext bool `json:"plaintext,omitempty" yaml:"plaintext,omitempty"`

	// Authority overrides the :authority header and the TLS server name.
	Authority string `json:"authority,omitempty" yaml:"authority,omitempty"`

	// TLS adds a CA bundle, a client certificate or verification settings.
	// It cannot be combined with Plaintext.
	TLS *ptls.ClientOptions `json:"tls,omitempty" yaml:"tls,omitempty"`

	// Metadata is sent with every call to this environment unless the call
	// supplies the same key.
	Metadata []MetadataEntry `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DefaultEnvironments is the table used when none is configured.
func DefaultEnvironments() []Environment {
	return []Environment{
		{Name: "local", Address: "localhost:50051", Plaintext: true},
	}
}

// Environments is a fixed, validated environment table. Names are matched
// case-insensitively.
type Environments struct {
	list   []Environment
	byName map[string]int
}

// NewEnvironments validates envs. Names must be unique and every entry needs
// an address.
func NewEnvironments(envs []Environment) (*Environments, error) {
	e := &Environments{byName: make(map[string]int)}
	for _, env := range envs {
		key := foldName(env.Name)
		if key == "" {
			return nil, fmt.Errorf("environment with address %q has no name", env.Address)
		}
		if strings.TrimSpace(env.Address) == "" {
			return nil, fmt.Errorf("environment %q has no address", env.Name)
		}
		if env.TLS != nil {
			if env.Plaintext {
				return nil, fmt.Errorf("environment %q is plaintext but sets tls options", env.Name)
			}
			if err := env.TLS.Validate(); err != nil {
				return nil, fmt.Errorf("environment %q: %w", env.Name, err)
			}
		}
		if _, dup := e.byName[key]; dup {
			return nil, fmt.Errorf("environment %q defined twice", env.Name)
		}
		e.byName[key] = len(e.list)
		e.list = append(e.list, env)
	}
	return e, nil
}

// Lookup returns the environment with the given name. An unknown name is an
// InvalidEnvironment fault.
func (e *Environments) Lookup(name string) (Environment, error) {
	if e != nil {
		if i, ok := e.byName[foldName(name)]; ok {
			return e.list[i], nil
		}
	}
	return Environment{}, &Fault{
		Category: CategoryInvalidEnvironment,
		Message:  fmt.Sprintf("unknown environment %q (known: %s)", name, strings.Join(e.Names(), ", ")),
	}
}

// Names returns the environment names, sorted.
func (e *Environments) Names() []string {
	if e == nil {
		return nil
	}
	names := make([]string, len(e.list))
	for i, env := range e.list {
		names[i] = env.Name
	}
	sort.Strings(names)
	return names
}

// List returns the environments in configuration order.
func (e *Environments) List() []Environment {
	if e == nil {
		return nil
	}
	out := make([]Environment, len(e.list))
	copy(out, e.list)
	return out
}

// foldName is the lookup key of an environment name.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
