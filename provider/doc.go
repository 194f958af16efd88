// Package provider defines the capability contract every memory storage
// backend must implement, along with the configuration, status, and operation
// types shared by the registry, health monitor, and failover layers.
//
// Backends are interchangeable: the substrate core is polymorphic over the
// Provider interface and never depends on a backend's wire protocol. Concrete
// implementations live in subpackages (postgres, sqlite, redis, mem0, memory)
// and register an enum-tagged factory via Register.
package provider
