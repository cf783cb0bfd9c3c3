package main

import (
	"context"
	"fmt"

	"github.com/terradock/terradock/internal/archive"
	"github.com/terradock/terradock/internal/config"
	"github.com/terradock/terradock/internal/fetch"
)

type command struct{}

func (c *command) apiClient(f AppFlags) (*APIClient, error) {
	apiUrl := f.APIUrl
	if apiUrl == "" {
		apiUrl = defaultAPIUrl
	}
	apiClient := NewAPIClient(apiUrl, f.APITimeout)
	if !apiClient.IsReachable() {
		return nil, fmt.Errorf("daemon not reachable at %s - please start it first with 'terradock serve'", apiUrl)
	}
	return apiClient, nil
}

// Launch asks the daemon to launch a named app.
func (c *command) Launch(f AppFlags, name string) error {
	apiClient, err := c.apiClient(f)
	if err != nil {
		return err
	}
	result, err := apiClient.Launch(name)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

// Status prints one app's status.
func (c *command) Status(f AppFlags, name string) error {
	apiClient, err := c.apiClient(f)
	if err != nil {
		return err
	}
	result, err := apiClient.Status(name)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

// Stop asks the daemon to stop a named app.
func (c *command) Stop(f AppFlags, name string) error {
	apiClient, err := c.apiClient(f)
	if err != nil {
		return err
	}
	result, err := apiClient.Stop(name)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

// Apps lists every app the daemon knows about.
func (c *command) Apps(f AppFlags) error {
	apiClient, err := c.apiClient(f)
	if err != nil {
		return err
	}
	result, err := apiClient.Apps()
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

// History prints an app's launch history.
func (c *command) History(f AppFlags, name string) error {
	apiClient, err := c.apiClient(f)
	if err != nil {
		return err
	}
	result, err := apiClient.History(name)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

// Fetch downloads assessment data exports from the configured FTP server.
func (c *command) Fetch(global *GlobalFlags, f FetchFlags) error {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if f.Host != "" {
		cfg.Fetch.Host = f.Host
	}
	if f.RemoteDir != "" {
		cfg.Fetch.RemoteDir = f.RemoteDir
	}
	if f.OutputDir != "" {
		cfg.Fetch.OutputDir = f.OutputDir
	}
	if f.Timeout > 0 {
		cfg.Fetch.Timeout = f.Timeout
	}

	fetcher, err := fetch.New(fetch.Options{
		Host:      cfg.Fetch.Host,
		RemoteDir: cfg.Fetch.RemoteDir,
		OutputDir: cfg.Fetch.OutputDir,
		Timeout:   cfg.Fetch.Timeout,
	})
	if err != nil {
		return err
	}
	sum, err := fetcher.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Downloaded %d file(s) (%d bytes), skipped %d, into %s\n",
		sum.Downloaded, sum.Bytes, sum.Skipped, cfg.Fetch.OutputDir)
	return nil
}

// Archive moves retired workspace items into a timestamped archive session.
func (c *command) Archive(global *GlobalFlags, f ArchiveFlags, items []string) error {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a := archive.New(cfg.Archive.WorkspaceRoot, cfg.Archive.ArchiveRoot, nil)
	sum, err := a.Archive(items, f.Reason)
	if err != nil {
		return err
	}
	fmt.Printf("Archived %d item(s) into %s", len(sum.Moved), sum.Dir)
	if len(sum.Skipped) > 0 {
		fmt.Printf(", skipped %d missing", len(sum.Skipped))
	}
	if len(sum.Errors) > 0 {
		fmt.Printf(", %d error(s)", len(sum.Errors))
		for _, e := range sum.Errors {
			fmt.Printf("\n  error: %s", e)
		}
	}
	fmt.Println()
	if len(sum.Errors) > 0 {
		return fmt.Errorf("archive finished with %d error(s)", len(sum.Errors))
	}
	return nil
}
