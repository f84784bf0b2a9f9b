package conversation

import (
	"fmt"
	"strings"

	"linkup/internal/models"
)

// FilterMode selects which messages a projection shows.
type FilterMode string

const (
	FilterNone    FilterMode = "none"
	FilterSearch  FilterMode = "search"
	FilterStarred FilterMode = "starred"
	FilterPinned  FilterMode = "pinned"
)

// Filter is the single active view filter of a conversation.
type Filter struct {
	Mode  FilterMode `json:"mode"`
	Query string     `json:"query,omitempty"`
}

// NoFilter shows every message.
func NoFilter() Filter { return Filter{Mode: FilterNone} }

// Search matches a case-insensitive substring of the text.
func Search(query string) Filter {
	if strings.TrimSpace(query) == "" {
		return NoFilter()
	}
	return Filter{Mode: FilterSearch, Query: query}
}

// Starred shows starred messages.
func Starred() Filter { return Filter{Mode: FilterStarred} }

// Pinned shows pinned messages.
func Pinned() Filter { return Filter{Mode: FilterPinned} }

// ParseFilter builds a Filter from its wire form.
func ParseFilter(mode, query string) (Filter, error) {
	switch FilterMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", FilterNone:
		return NoFilter(), nil
	case FilterSearch:
		return Search(query), nil
	case FilterStarred:
		return Starred(), nil
	case FilterPinned:
		return Pinned(), nil
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, mode)
	}
}

func (f Filter) match(m *models.Message) bool {
	switch f.Mode {
	case FilterStarred:
		return m.IsStarred
	case FilterPinned:
		return m.IsPinned
	case FilterSearch:
		return strings.Contains(strings.ToLower(m.Text), strings.ToLower(f.Query))
	default:
		return true
	}
}
