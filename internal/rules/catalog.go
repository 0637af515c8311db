package rules

import "sync"

// Catalog is the process-scoped registry of rules. It is filled once at
// startup and passed explicitly to the Engine.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	rules map[string]Rule
}

// NewCatalog creates an empty catalog
func NewCatalog(rules ...Rule) *Catalog {
	c := &Catalog{rules: make(map[string]Rule)}
	for _, r := range rules {
		c.Register(r)
	}
	return c
}

// Register inserts or overwrites a rule by id. An overwrite keeps the
// original registration slot, so tie-breaking order is stable.
func (c *Catalog) Register(r Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.ConfigKey == "" {
		r.ConfigKey = r.ID
	}
	if _, exists := c.rules[r.ID]; !exists {
		c.order = append(c.order, r.ID)
	}
	c.rules[r.ID] = r
}

// Rules returns every registered rule in registration order
func (c *Catalog) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Rule, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.rules[id])
	}
	return out
}

// Get looks a rule up by id
func (c *Catalog) Get(id string) (Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[id]
	return r, ok
}

// Len returns the number of registered rules
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
