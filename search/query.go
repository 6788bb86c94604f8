package search

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Query represents the structured parameters of a message search.
// It decouples the raw input from the actual index requirements.
type Query struct {
	RawInput string // The original input
	Terms    string // The actual text to match against message content
	SpaceID  int64  // 0 searches every space
	Room     string
	Lang     string // ISO 639-1 code
	Limit    int
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: /find "release notes" --room lounge --space 2 --lang en --limit 5
// Unknown flags and invalid values are ignored.
func NewSearchQuery(input string) Query {
	query := Query{RawInput: input, Limit: DefaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]
			switch key {
			case "room":
				query.Room = val
			case "lang":
				query.Lang = strings.ToLower(val)
			case "space":
				if id, err := strconv.ParseInt(val, 10, 64); err == nil && id > 0 {
					query.SpaceID = id
				}
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = min(limit, MaxLimit)
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		// Commands like /find are not search terms
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, strings.Trim(part, `"`))
		}
	}

	query.Terms = strings.TrimSpace(strings.Join(textTerms, " "))
	return query
}
