package ami

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// managerConfPath is where Asterisk keeps manager account definitions.
const managerConfPath = "/etc/asterisk/manager.conf"

// AutoDetectPassword reads the manager secret for username from the local
// Asterisk configuration. Only useful when running on the same host as
// Asterisk with read access to its config.
func AutoDetectPassword(username string) (string, error) {
	return detectPassword(managerConfPath, username)
}

func detectPassword(path, username string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ami: open %s: %w", path, err)
	}
	defer f.Close()

	var inSection bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.Trim(line, "[]") == username
			continue
		}
		if !inSection {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "secret" {
			// Strip a trailing same-line comment.
			if v, _, found := strings.Cut(value, ";"); found {
				value = v
			}
			return strings.TrimSpace(value), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("ami: read %s: %w", path, err)
	}
	return "", fmt.Errorf("ami: no secret for manager user %q in %s", username, path)
}
