// Package examples holds the schema examples a session can switch to.
package examples

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"redisquery-backend/internal/models"
	"redisquery-backend/internal/services"
)

// file is the layout of EXAMPLES_FILE.
//
//	[[example]]
//	name = "Leaderboard"
//	key_patterns = "board:{season}"
//	...
type file struct {
	Example []models.Example `toml:"example"`
}

// Catalog is the built-in examples followed by any loaded from a TOML file.
type Catalog struct {
	mu      sync.RWMutex
	builtin []models.Example
	extra   []models.Example
	path    string
}

func NewCatalog(path string) *Catalog {
	return &Catalog{builtin: Builtin(), path: path}
}

// Load reads the examples file, if one is configured. On error the catalog is
// left as it was.
func (c *Catalog) Load() error {
	if c.path == "" {
		return nil
	}

	extra, err := LoadFile(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.extra = extra
	c.mu.Unlock()
	return nil
}

func (c *Catalog) List() []models.Example {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Example, 0, len(c.builtin)+len(c.extra))
	out = append(out, c.builtin...)
	return append(out, c.extra...)
}

func (c *Catalog) Summaries() []models.ExampleSummary {
	list := c.List()
	out := make([]models.ExampleSummary, len(list))
	for i, ex := range list {
		out[i] = models.ExampleSummary{Index: i, Name: ex.Name, Description: ex.Description}
	}
	return out
}

func (c *Catalog) Get(index int) (models.Example, error) {
	list := c.List()
	if index < 0 || index >= len(list) {
		return models.Example{}, &services.NotFoundError{Message: fmt.Sprintf("Example %d not found", index)}
	}
	return list[index], nil
}

// Default is the example new sessions start from.
func (c *Catalog) Default() models.Example {
	ex, _ := c.Get(0)
	return ex
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.builtin) + len(c.extra)
}

// LoadFile decodes a TOML examples file. Every example needs a name.
func LoadFile(path string) ([]models.Example, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to parse examples file %s: %w", path, err)
	}

	for i, ex := range f.Example {
		if strings.TrimSpace(ex.Name) == "" {
			return nil, fmt.Errorf("example %d in %s has no name", i+1, path)
		}
	}
	return f.Example, nil
}
