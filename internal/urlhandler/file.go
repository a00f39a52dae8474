package urlhandler

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Custom errors for file operations
var (
	ErrFileNotFound = errors.New("input file not found")
	ErrFileEmpty    = errors.New("input file contains no valid URLs")
	ErrReadingFile  = errors.New("error reading input file")
)

// ReadURLsFromFile reads one URL per line, skipping blank lines and lines
// starting with '#'. Lines that fail normalization are logged and skipped;
// duplicates after normalization are dropped while keeping first-seen order.
func ReadURLsFromFile(filePath string, logger zerolog.Logger) ([]string, error) {
	fileLogger := logger.With().Str("file_path", filePath).Logger()

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrReadingFile, filePath, err)
	}
	defer file.Close()

	var urls []string
	seen := make(map[string]bool)
	lineNumber, skipped := 0, 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		normalized, normErr := NormalizeURL(line)
		if normErr != nil {
			fileLogger.Warn().Err(normErr).Int("line", lineNumber).Str("url", line).Msg("Skipping invalid URL")
			skipped++
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		urls = append(urls, normalized)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadingFile, filePath, err)
	}

	fileLogger.Info().
		Int("lines", lineNumber).
		Int("urls", len(urls)).
		Int("skipped", skipped).
		Msg("Finished reading URL file")

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileEmpty, filePath)
	}
	return urls, nil
}
