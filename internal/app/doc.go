// Package app provides the consumer-facing operation surface.
//
// Plugin maps the plugin operations onto the session manager and the permission source.
// Host adapters (HTTP, tests) talk to Plugin, never to the manager directly.
package app
