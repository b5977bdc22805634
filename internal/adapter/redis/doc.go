// Package redis bridges the device over Redis.
//
// Provider implements domain.LocationProvider with pub/sub request and sample channels;
// PermissionStore implements domain.PermissionSource from a hash the device keeps current.
// All commands go through a circuit breaker hook installed by NewClient.
package redis
