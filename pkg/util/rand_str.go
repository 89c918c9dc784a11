// Package util contains small helpers shared by packages that have no
// better home for them
package util

import gonanoid "github.com/matoous/go-nanoid/v2"

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandStr returns an n character alphanumeric string from a crypto source
func RandStr(n int) string {
	return gonanoid.MustGenerate(charset, n)
}
