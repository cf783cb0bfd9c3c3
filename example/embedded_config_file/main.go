package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/terradock/terradock"
)

// This example loads a TOML config file and builds a launcher over the apps
// directory using the public terradock facade.
func main() {
	// Use the sample config in the repo (adjust path if running from a different cwd)
	cfgPath := "terradock.toml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := terradock.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	env, err := cfg.LauncherEnv()
	if err != nil {
		panic(err)
	}
	l, err := terradock.New(terradock.Options{
		AppsDir:   cfg.Launcher.AppsDir,
		PortStart: cfg.Launcher.PortStart,
		PortEnd:   cfg.Launcher.PortEnd,
		StopGrace: cfg.Launcher.StopGrace,
		Env:       env,
	})
	if err != nil {
		panic(err)
	}
	defer l.Shutdown()

	// Launch every app found in the apps directory and print the results.
	results := make(map[string]terradock.LaunchResult)
	for _, app := range l.List() {
		results[app.Name] = l.Launch(app.Name)
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
