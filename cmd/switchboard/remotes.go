package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig is the CLI's list of named servers.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is one named server. NATSURL is used by emit --via-nats.
type Remote struct {
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
}

// add inserts or replaces a remote. The first remote becomes active.
func (c *RemotesConfig) add(name string, r Remote) error {
	if name == "" {
		return fmt.Errorf("remote name is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("remote url %q must be an absolute http(s) URL", r.URL)
	}
	c.Remotes[name] = r
	if c.Active == "" {
		c.Active = name
	}
	return nil
}

func (c *RemotesConfig) remove(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	delete(c.Remotes, name)
	if c.Active == name {
		c.Active = ""
	}
	return nil
}

func (c *RemotesConfig) use(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	c.Active = name
	return nil
}

func (c *RemotesConfig) rename(from, to string) error {
	r, ok := c.Remotes[from]
	if !ok {
		return fmt.Errorf("remote %q not found", from)
	}
	if _, taken := c.Remotes[to]; taken {
		return fmt.Errorf("remote %q already exists", to)
	}
	delete(c.Remotes, from)
	c.Remotes[to] = r
	if c.Active == from {
		c.Active = to
	}
	return nil
}

// lookup resolves name, or the active remote when name is empty.
func (c *RemotesConfig) lookup(name string) (string, Remote, error) {
	if name == "" {
		name = c.Active
	}
	if name == "" {
		return "", Remote{}, fmt.Errorf("no active remote; specify a name or run 'switchboard remote use <name>'")
	}
	r, ok := c.Remotes[name]
	if !ok {
		return "", Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

func (c *RemotesConfig) names() []string {
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// remotesPath is $SWITCHBOARD_REMOTES or
// ~/.local/state/switchboard/remotes.toml.
func remotesPath() (string, error) {
	if p := os.Getenv("SWITCHBOARD_REMOTES"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "switchboard", "remotes.toml"), nil
}

func loadRemotes() (*RemotesConfig, error) {
	cfg := &RemotesConfig{}
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]Remote)
	}
	return cfg, nil
}

// save writes the file with owner-only permissions; tokens are stored in it.
func (c *RemotesConfig) save() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var activeRemote = sync.OnceValue(func() Remote {
	cfg, err := loadRemotes()
	if err != nil {
		return Remote{}
	}
	_, r, err := cfg.lookup("")
	if err != nil {
		return Remote{}
	}
	return r
})

func activeRemoteURL() string     { return activeRemote().URL }
func activeRemoteToken() string   { return activeRemote().Token }
func activeRemoteNATSURL() string { return activeRemote().NATSURL }
