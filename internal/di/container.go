// Package di provides a minimal, string-keyed service container used to wire
// bounded-context modules together without a reflection-heavy framework.
package di

import "sync"

// ServiceRegistry is the read side of the container: modules depend on this
// narrower interface so they cannot register services behind each other's back.
type ServiceRegistry interface {
	Get(key string) interface{}
}

// Container is the read-write side, used only during module registration.
type Container interface {
	ServiceRegistry
	Register(key string, value interface{})
}

type entry struct {
	value   interface{}
	factory func(ServiceRegistry) interface{}
	built   bool
}

// container is the default in-memory Container implementation.
type container struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewContainer creates an empty Container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

// Register stores an already-constructed value under key.
func (c *container) Register(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, built: true}
}

// registerLazy stores a factory that is invoked at most once, on first Get.
func (c *container) registerLazy(key string, factory func(ServiceRegistry) interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{factory: factory}
}

// Get resolves key, building it from its factory on first access.
// Panics if key was never registered - a wiring bug, not a runtime condition.
func (c *container) Get(key string) interface{} {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		panic("di: no service registered for key " + key)
	}
	if e.built {
		c.mu.Unlock()
		return e.value
	}
	c.mu.Unlock()

	// Build outside the lock: factories call back into the container via
	// ServiceRegistry.Get to resolve their own dependencies.
	value := e.factory(c)

	c.mu.Lock()
	e.value = value
	e.built = true
	c.mu.Unlock()
	return value
}

// RegisterToken registers a typed, lazily-constructed service under token.
// factory runs at most once; its result is cached for subsequent Get calls.
func RegisterToken[T any](c Container, token string, factory func(ServiceRegistry) T) {
	lazy, ok := c.(*container)
	if !ok {
		// Fall back to eager construction for container implementations that
		// don't support lazy registration (e.g. test doubles).
		c.Register(token, factory(c))
		return
	}
	lazy.registerLazy(token, func(sr ServiceRegistry) interface{} {
		return factory(sr)
	})
}

// GetToken resolves a typed service registered under token.
func GetToken[T any](sr ServiceRegistry, token string) T {
	v := sr.Get(token)
	t, ok := v.(T)
	if !ok {
		panic("di: service registered under " + token + " has unexpected type")
	}
	return t
}
