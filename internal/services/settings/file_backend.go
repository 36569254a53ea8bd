package settings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FileBackend persists settings in a dotenv-style file. Updates upsert
// per key while preserving unknown lines and comments, then replace the
// file atomically; filesystems that refuse the rename get an in-place
// rewrite with fsync instead.
type FileBackend struct {
	path string
}

// NewFileBackend wraps a dotenv file path. The file may not exist yet;
// it is created on first Apply.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read parses the dotenv file into a key/value map. A missing file
// reads as empty.
func (b *FileBackend) Read(_ context.Context) (map[string]string, error) {
	content, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	values, err := godotenv.Unmarshal(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return values, nil
}

// Version derives a deterministic content version from the file's
// mtime and content hash.
func (b *FileBackend) Version(_ context.Context) (string, error) {
	content, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "0:" + shortHash(nil), nil
		}
		return "", fmt.Errorf("failed to read settings file: %w", err)
	}
	info, err := os.Stat(b.path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%s", info.ModTime().UnixNano(), shortHash(content)), nil
}

// UpdatedAt returns the file's modification time.
func (b *FileBackend) UpdatedAt(_ context.Context) (*time.Time, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	mtime := info.ModTime()
	return &mtime, nil
}

// Apply upserts updates into the file. Masked sensitive values are
// skipped when a non-empty value is already stored.
func (b *FileBackend) Apply(ctx context.Context, updates map[string]string, sensitiveKeys map[string]bool, maskToken string) (applied []string, skippedMasked []string, newVersion string, err error) {
	current, err := b.Read(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	writes := make(map[string]string)
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := updates[key]
		if maskToken != "" && value == maskToken && sensitiveKeys[key] && current[key] != "" {
			skippedMasked = append(skippedMasked, key)
			continue
		}
		writes[key] = value
		applied = append(applied, key)
	}

	if len(writes) > 0 {
		if err := b.rewrite(writes); err != nil {
			return nil, nil, "", err
		}
	}

	newVersion, err = b.Version(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	return applied, skippedMasked, newVersion, nil
}

// rewrite upserts the writes into the file text. For keys that appear
// more than once, the last occurrence is replaced and earlier ones kept
// untouched, matching dotenv's last-wins read semantics.
func (b *FileBackend) rewrite(writes map[string]string) error {
	var lines []string
	if content, err := os.ReadFile(b.path); err == nil {
		lines = strings.Split(string(content), "\n")
		// Drop a single trailing blank produced by a final newline.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	lastIndex := make(map[string]int)
	for i, line := range lines {
		if key, ok := parseLineKey(line); ok {
			lastIndex[key] = i
		}
	}

	pending := make([]string, 0, len(writes))
	for key := range writes {
		pending = append(pending, key)
	}
	sort.Strings(pending)

	for _, key := range pending {
		rendered := renderLine(key, writes[key])
		if i, ok := lastIndex[key]; ok {
			lines[i] = rendered
		} else {
			lines = append(lines, rendered)
		}
	}

	content := strings.Join(lines, "\n") + "\n"
	return b.replaceFile([]byte(content))
}

// replaceFile writes via temp file + rename, falling back to an
// in-place rewrite with fsync when the rename is refused.
func (b *FileBackend) replaceFile(content []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, b.path); err == nil {
		return nil
	}
	os.Remove(tmpPath)

	// EBUSY/EXDEV style filesystems: rewrite in place.
	file, err := os.OpenFile(b.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open settings file for rewrite: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(content); err != nil {
		return fmt.Errorf("failed to rewrite settings file: %w", err)
	}
	return file.Sync()
}

// parseLineKey extracts the key of a KEY=VALUE line; comments and
// non-assignment lines report false.
func parseLineKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	eq := strings.Index(trimmed, "=")
	if eq <= 0 {
		return "", false
	}
	key := strings.TrimSpace(trimmed[:eq])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", false
	}
	return key, true
}

// renderLine formats a KEY=VALUE assignment, quoting values that would
// not survive a round trip unquoted.
func renderLine(key, value string) string {
	if value == "" || strings.ContainsAny(value, " \t#\"'`$") {
		return fmt.Sprintf("%s=%q", key, value)
	}
	return key + "=" + value
}

func shortHash(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}
