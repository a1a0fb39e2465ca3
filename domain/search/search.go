package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 20

// Query represents the structured parameters for a message search inside one chat.
// It decouples the raw user input from the actual index requirements.
type Query struct {
	RawInput string // The original input from the user
	Terms    string // The actual text to search in the index
	SenderID string // Optional author filter
	ChatID   string
	Limit    int
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: /find dinner friday --from 42 --limit 5
func NewSearchQuery(chatID, input string) Query {
	query := Query{
		RawInput: input,
		ChatID:   chatID,
		Limit:    defaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "from":
				query.SenderID = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

func (q Query) WithLimit(limit int) Query {
	if limit > 0 {
		q.Limit = limit
	}
	return q
}
