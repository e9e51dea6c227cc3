package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

func validateAndResolvePath(targetPath string) (string, error) {
	if _, err := os.Stat(targetPath); err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}

	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path: %w", err)
	}

	return absPath, nil
}

// resolveGlob expands pattern and resolves each match to an absolute path.
func resolveGlob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}

	resolved := make([]string, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve path %s: %w", m, err)
		}
		resolved = append(resolved, abs)
	}

	return resolved, nil
}

func printCommandHeader(command, target string) {
	fmt.Printf("Command: %s\n", command)
	fmt.Printf("Target: %s\n", target)
}

func printSummary(lines ...string) {
	fmt.Println("=== Summary ===")
	for _, line := range lines {
		fmt.Println(line)
	}
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

type progressReporter struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func startProgress(label string) *progressReporter {
	p := &progressReporter{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	startTime := time.Now()
	ticker := time.NewTicker(5 * time.Second)

	go func() {
		defer close(p.doneCh)
		for {
			select {
			case <-ticker.C:
				elapsed := time.Since(startTime).Round(time.Second)
				fmt.Fprintf(os.Stderr, "%s... %s elapsed\n", label, elapsed)
			case <-p.stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	return p
}

func (p *progressReporter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.doneCh
	})
}
