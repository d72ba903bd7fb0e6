package parsers

import (
	"bufio"
	"io"
	"strings"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
)

// maxLineBytes bounds a single line of a list file.
const maxLineBytes = 1 << 20

// ParsePlainList parses a newline-delimited list of domains.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Trims surrounding whitespace, lowercases, drops trailing dots
// - Skips empty lines after trimming/stripping comments
// - De-duplicates while preserving first-seen order
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_plain_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")

		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		name := utils.HostName(line)
		if name == "" {
			continue
		}
		if strings.ContainsAny(name, " \t@") {
			logger.Debug(map[string]any{"line": lineNum, "raw": name}, "skip_invalid_domain")
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_plain_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_list_done")
	return out, nil
}
