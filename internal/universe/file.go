package universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"barkeep/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*FileProvider)(nil)

// FileProvider reads symbols from a text or CSV file: one symbol per line, or
// the first column of a CSV with an optional "symbol"/"ticker" header row.
// Blank lines and #-comments are skipped. Serves curated lists such as the
// S&P 500.
type FileProvider struct {
	Path string
}

// NewFileProvider creates a provider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Name identifies the provider by the file's base name.
func (p *FileProvider) Name() string {
	return "file:" + filepath.Base(p.Path)
}

// Symbols returns the file's symbols in order, normalized and deduplicated.
func (p *FileProvider) Symbols(_ context.Context) ([]string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening symbol file: %w", err)
	}
	defer f.Close()

	var (
		symbols []string
		seen    = make(map[string]struct{})
		first   = true
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = line[:i]
		}
		if first {
			first = false
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "symbol", "ticker":
				continue
			}
		}
		sym := domain.NormalizeTicker(line)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading symbol file: %w", err)
	}
	return symbols, nil
}
