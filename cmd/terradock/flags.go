package main

import "time"

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string // Only config path for CLI commands
}

// AppFlags holds flags for commands that talk to a running daemon
type AppFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	ConfigPath string
	NoBrowser  bool
}

// FetchFlags holds flags for the fetch command
type FetchFlags struct {
	Host      string
	RemoteDir string
	OutputDir string
	Timeout   time.Duration
}

// ArchiveFlags holds flags for the archive command
type ArchiveFlags struct {
	Reason string
}
