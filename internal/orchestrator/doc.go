// Package orchestrator runs every configured server: one control API
// session, one message document and one scheduler per enabled section.
// Servers are started, replaced and stopped independently as their config
// files change.
package orchestrator
