//go:build !unix

package ipc

func isRefused(error) bool { return false }
