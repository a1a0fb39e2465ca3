package runtime

import (
	"bufio"
	"io/fs"
	"match-chat/errors"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// CensoredData is the merged dictionary and the languages it was built from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one word list per language, e.g. en.txt, from a directory of an fs.FS.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll merges every list found directly under dir.
// Lines are trimmed and lowercased, blank lines and lines starting with # are skipped.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	words := make(map[string]struct{})
	var languages []string
	for _, entry := range entries {
		lang, isList := strings.CutSuffix(entry.Name(), ".txt")
		if entry.IsDir() || !isList {
			continue
		}
		if err := l.readList(path.Join(dir, entry.Name()), words); err != nil {
			return nil, err
		}
		languages = append(languages, lang)
	}
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}

	merged := lo.Keys(words)
	slices.Sort(merged)
	slices.Sort(languages)
	return &CensoredData{Words: merged, Languages: languages}, nil
}

func (l *CensoredLoader) readList(name string, into map[string]struct{}) error {
	f, err := l.fs.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	// bufio.ScanLines drops the trailing \r of windows line endings
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		into[word] = struct{}{}
	}
	return scanner.Err()
}
