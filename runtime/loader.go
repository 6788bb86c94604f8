// Package runtime wires the space projections, their sinks and the supervisor together.
package runtime

import (
	"bufio"
	"bytes"
	"io/fs"
	"ledger-chat/errors"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Dictionaries holds the censored words of each language, keyed by the
// dictionary file name ("fr.txt" -> "fr").
type Dictionaries map[string][]string

// Languages lists the loaded languages in a stable order.
func (d Dictionaries) Languages() []string {
	languages := lo.Keys(d)
	slices.Sort(languages)
	return languages
}

// Words merges every language, each word once.
func (d Dictionaries) Words() []string {
	var words []string
	for _, lang := range d.Languages() {
		words = append(words, d[lang]...)
	}
	return lo.Uniq(words)
}

// LoadDictionaries reads every .txt file of dir. Blank lines and lines
// starting with '#' are ignored, words are lowercased.
func LoadDictionaries(fsys fs.FS, dir string) (Dictionaries, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	dictionaries := make(Dictionaries)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		words, err := parseDictionary(data)
		if err != nil {
			return nil, err
		}
		if len(words) > 0 {
			dictionaries[strings.TrimSuffix(entry.Name(), ".txt")] = words
		}
	}

	if len(dictionaries) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return dictionaries, nil
}

// The scanner copes with \r\n line endings, strings.Split does not.
func parseDictionary(data []byte) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lo.Uniq(words), nil
}
