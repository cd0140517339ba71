// Package runner launches and stops the managed server binary for an
// instance: world generation at create time, and foreground runs that
// relay the server's output. It is intentionally minimal; everything about
// versions and updates lives in the store and policy packages.
package runner
