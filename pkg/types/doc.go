// Package types defines the Table interface, the typed cell values it holds,
// the Workspace source entity, configuration, and the standard error values
// shared by the memento store.
package types
