package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadSeedFile reads one account handle per line, skipping blanks and
// lines starting with '#'.
func ReadSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file %s: %w", path, err)
	}
	defer f.Close()

	var handles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handles = append(handles, strings.TrimPrefix(line, "@"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return handles, nil
}
