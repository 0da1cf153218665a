// Package grizzly provides the core domain model shared by the grizzly
// language server: step patterns, the step inventory, workspace
// configuration and the structured error kinds surfaced to editors.
package grizzly
