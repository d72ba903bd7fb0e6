package parsers

import (
	"bufio"
	"io"
	"strings"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
)

// ParseHostsList parses an /etc/hosts-style list, the other format disposable
// domain lists are published in.
//
// Rules:
// - Ignore the IP field; every following token is a candidate domain
// - Skip comments (whole-line or inline after '#') and blank lines
// - Skip wildcards and names starting with '.'
// - Require a valid multi-label domain; single labels such as localhost are dropped
// - De-duplicate, preserving first-seen order
func ParseHostsList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_hosts_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			name := utils.HostName(raw)
			if !isValidDomain(name) {
				logger.Debug(map[string]any{"line": lineNum, "name": name}, "hosts_skip_invalid_domain")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_hosts_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_hosts_done")
	return out, nil
}

// isValidDomain checks the shape of a canonical mail domain: at most 255
// bytes, at least two labels, every label 1-63 bytes, first byte a letter
// or digit.
func isValidDomain(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ParseList picks the parser from the source name: ".hosts" files use the
// hosts format, everything else the plain format.
func ParseList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	if strings.HasSuffix(strings.ToLower(source), ".hosts") {
		return ParseHostsList(r, source, logger)
	}
	return ParsePlainList(r, source, logger)
}
