// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (settings.go, location.go, provider.go, signals.go, permission.go)
// hold shared types and the interfaces of external collaborators. No implementation code.
package domain
