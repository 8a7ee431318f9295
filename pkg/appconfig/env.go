package appconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/subosito/gotenv"
)

// Environment is a flat string mapping such as the process environment.
type Environment interface {
	Lookup(name string) (string, bool)
	Set(name, value string) error
	Unset(name string) error
}

// OSEnvironment is the process environment.
type OSEnvironment struct{}

func (OSEnvironment) Lookup(name string) (string, bool) { return os.LookupEnv(name) }
func (OSEnvironment) Set(name, value string) error      { return os.Setenv(name, value) }
func (OSEnvironment) Unset(name string) error           { return os.Unsetenv(name) }

// MapEnvironment is an in-memory Environment.
type MapEnvironment struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMapEnvironment returns a MapEnvironment holding a copy of vars.
func NewMapEnvironment(vars map[string]string) *MapEnvironment {
	m := &MapEnvironment{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		m.vars[k] = v
	}
	return m
}

func (m *MapEnvironment) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[name]
	return v, ok
}

func (m *MapEnvironment) Set(name, value string) error {
	m.mu.Lock()
	m.vars[name] = value
	m.mu.Unlock()
	return nil
}

func (m *MapEnvironment) Unset(name string) error {
	m.mu.Lock()
	delete(m.vars, name)
	m.mu.Unlock()
	return nil
}

// Getenv returns the environment variable name, or def when it is unset.
func (c *Config) Getenv(name, def string) (string, error) {
	c.maintain(context.Background())

	if name == "" {
		return "", opError("getenv", name, ErrMissingName)
	}

	c.envMu.Lock()
	defer c.envMu.Unlock()
	if v, ok := c.env.Lookup(name); ok {
		return v, nil
	}
	return def, nil
}

// GetEnv is an alias for Getenv.
func (c *Config) GetEnv(name, def string) (string, error) {
	return c.Getenv(name, def)
}

// Setenv sets the environment variable name. An empty value is rejected.
func (c *Config) Setenv(name, value string) error {
	const op = "setenv"
	c.maintain(context.Background())

	if name == "" {
		return opError(op, name, ErrMissingName)
	}
	if value == "" {
		return opError(op, name, ErrMissingValue)
	}

	c.envMu.Lock()
	defer c.envMu.Unlock()
	if err := c.env.Set(name, value); err != nil {
		return opError(op, name, err)
	}
	return nil
}

// SetEnv is an alias for Setenv.
func (c *Config) SetEnv(name, value string) error {
	return c.Setenv(name, value)
}

// DeleteEnv unsets name, failing with ErrEnvNotFound when it is not set.
func (c *Config) DeleteEnv(name string) error {
	const op = "delete_env"
	c.maintain(context.Background())

	if name == "" {
		return opError(op, name, ErrMissingName)
	}

	c.envMu.Lock()
	defer c.envMu.Unlock()
	if _, ok := c.env.Lookup(name); !ok {
		return opError(op, name, ErrEnvNotFound)
	}
	if err := c.env.Unset(name); err != nil {
		return opError(op, name, err)
	}
	return nil
}

// EnvHas reports whether name is set.
func (c *Config) EnvHas(name string) (bool, error) {
	c.maintain(context.Background())

	if name == "" {
		return false, opError("env_has_item", name, ErrMissingName)
	}

	c.envMu.Lock()
	defer c.envMu.Unlock()
	_, ok := c.env.Lookup(name)
	return ok, nil
}

// LoadEnvFiles reads dotenv files into the environment namespace. Missing
// files are skipped and variables that are already set keep their value.
// It returns the number of variables added.
func (c *Config) LoadEnvFiles(paths ...string) (int, error) {
	c.maintain(context.Background())

	var files []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		files = append(files, p)
	}
	if len(files) == 0 {
		return 0, nil
	}

	// Earlier files win over later ones.
	vars := make(gotenv.Env)
	for _, f := range files {
		env, err := gotenv.Read(f)
		if err != nil {
			return 0, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range env {
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
	}

	c.envMu.Lock()
	defer c.envMu.Unlock()
	added := 0
	for k, v := range vars {
		if _, ok := c.env.Lookup(k); ok {
			continue
		}
		if err := c.env.Set(k, v); err != nil {
			return added, fmt.Errorf("set %s: %w", k, err)
		}
		added++
	}
	c.logger.Debugw("Loaded env files", "files", files, "added", added)
	return added, nil
}
