// Package soundboard manages the sound files the bot can play and the
// per-user entrance sounds.
package soundboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"filmklub/internal/apperr"
)

const (
	Ext = ".mp3"

	MaxNameLength = 20
	maxUploadSize = 8 << 20
)

// Library is a flat directory of mp3 files. A sound's name is its file name
// without the extension.
type Library struct {
	dir    string
	client *http.Client
	log    zerolog.Logger
}

func NewLibrary(dir string, client *http.Client, logger zerolog.Logger) *Library {
	if client == nil {
		client = http.DefaultClient
	}
	return &Library{dir: dir, client: client, log: logger}
}

func (l *Library) Dir() string { return l.dir }

// List returns the sound names sorted case-insensitively. A missing
// directory is an empty library.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apperr.IO("soundboard.list", "Could not read the sounds directory.", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	return names, nil
}

// Match returns up to limit names containing query, case-insensitively.
func (l *Library) Match(query string, limit int) []string {
	names, err := l.List()
	if err != nil {
		l.log.Warn().Err(err).Msg("Failed to list sounds")
		return nil
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := []string{}
	for _, n := range names {
		if query != "" && !strings.Contains(strings.ToLower(n), query) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// FileName returns the stored file name for a sound name.
func FileName(name string) string {
	return name + Ext
}

// Path returns the file path for a sound name.
func (l *Library) Path(name string) string {
	return filepath.Join(l.dir, FileName(name))
}

// FilePath returns the path for a stored file name such as "boom.mp3".
func (l *Library) FilePath(file string) string {
	return filepath.Join(l.dir, filepath.Base(file))
}

func (l *Library) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	return fileExists(l.Path(name))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ValidateName rejects names that are empty, too long or that would escape
// the sounds directory.
func ValidateName(name string) error {
	const op = "soundboard.name"
	switch {
	case strings.TrimSpace(name) == "":
		return apperr.Empty(op, "Sound name cannot be empty.")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return apperr.WrongKind(op, fmt.Sprintf("Sound name must be at most %d characters.", MaxNameLength))
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return apperr.WrongKind(op, "Sound name cannot contain path separators.")
	}
	return nil
}

// Upload downloads url into the library under name.
func (l *Library) Upload(ctx context.Context, name, url string) error {
	const op = "soundboard.upload"
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return apperr.IO(op, "Could not create the sounds directory.", err)
	}
	dest := l.Path(name)
	if fileExists(dest) {
		return apperr.Duplicate(op, fmt.Sprintf("A sound with the name %q already exists. Please choose a different name.", name))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.External(op, "Failed to download the audio file.", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return apperr.External(op, "Failed to download the audio file.", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.External(op, "Failed to download the audio file.", fmt.Errorf("bad response: %s", resp.Status))
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return apperr.IO(op, "Could not save the sound.", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxUploadSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return apperr.IO(op, "Could not save the sound.", err)
	}
	if n > maxUploadSize {
		return apperr.WrongKind(op, "The audio file is too large.")
	}

	// link fails if another upload won the race for the name
	if err := os.Link(tmp.Name(), dest); err != nil {
		if os.IsExist(err) {
			return apperr.Duplicate(op, fmt.Sprintf("A sound with the name %q already exists. Please choose a different name.", name))
		}
		return apperr.IO(op, "Could not save the sound.", err)
	}

	l.log.Info().Str("sound", name).Int64("bytes", n).Msg("Sound uploaded")
	return nil
}
