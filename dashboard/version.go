package main

var (
	// Version is set at build time via -ldflags.
	Version = "unknown"
	// Gitref is set at build time via -ldflags.
	Gitref = "unknown"
)
