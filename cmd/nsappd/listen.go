package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/naviserver-project/naviserver-sub002/pkg/config"
	"github.com/naviserver-project/naviserver-sub002/pkg/logging"
)

// bindListeners resolves the -b/-B command-line surface into a flat list
// of "addr:port" strings to bind, preferring an explicit -b list, then a
// -B file, and falling back to nothing (the caller picks a default).
func bindListeners(opts serverOptions, cfg *config.Config, log *logging.Logger) ([]string, error) {
	if len(opts.binds) > 0 {
		return opts.binds, nil
	}
	if opts.bindFile == "" {
		return nil, nil
	}

	f, err := os.Open(opts.bindFile)
	if err != nil {
		return nil, fmt.Errorf("bind file %s: %w", opts.bindFile, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bind file %s: %w", opts.bindFile, err)
	}
	log.Infof("nsappd: loaded %d bind address(es) from %s", len(out), opts.bindFile)
	return out, nil
}
