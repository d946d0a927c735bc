package main

import (
	"fmt"
	"os"

	"github.com/blockedby/tgdown/internal/config"
)

// validate-config checks tgdown config files the way tgdown would load
// them, with the current environment and .env applied on top.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("❌ Failed to read %s: %v\n", path, err)
			failed = true
			continue
		}

		if err := os.Setenv("CONFIG_FILE", path); err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed = true
			continue
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("❌ Invalid config in %s: %v\n", path, err)
			failed = true
			continue
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (channel %s, filter %s, queue %d)\n",
			path, cfg.Channel, cfg.DownloadFilter, cfg.MaxQueueSize)
	}

	if failed {
		os.Exit(1)
	}
}
