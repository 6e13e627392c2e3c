/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil provides helpers for testing code that uses the admission pipeline.
package testutil

type tHelper interface {
	Helper()
}
