// Package picker is the server-side model of the searchable select used for
// animals and devices.
package picker

import (
	"strconv"
	"strings"
)

// Option is one selectable entry. Value is the submitted form value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Labeled is anything with an id and a display label.
type Labeled interface {
	CandidateID() int
	Label() string
}

// Options converts items into options, keeping their order.
func Options[T Labeled](items []T) []Option {
	out := make([]Option, len(items))
	for i, it := range items {
		out[i] = Option{Value: strconv.Itoa(it.CandidateID()), Label: it.Label()}
	}
	return out
}

// Filter returns the options whose label contains term, ignoring case.
// An empty or blank term returns every option.
func Filter(options []Option, term string) []Option {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return options
	}
	var out []Option
	for _, o := range options {
		if strings.Contains(strings.ToLower(o.Label), term) {
			out = append(out, o)
		}
	}
	return out
}

// Selected returns the option with the given value.
func Selected(options []Option, value string) (Option, bool) {
	if value == "" {
		return Option{}, false
	}
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Display is the text shown in the closed picker: the selected label, or placeholder.
func Display(options []Option, value, placeholder string) string {
	if o, ok := Selected(options, value); ok {
		return o.Label
	}
	return placeholder
}

// Hint is the helper text under the picker.
// Empty string means no hint.
func Hint(options []Option, filtered []Option, term string) string {
	switch {
	case len(options) == 0:
		return "No options available for the selected period."
	case len(filtered) == 0:
		return "No results for \"" + strings.TrimSpace(term) + "\"."
	}
	return ""
}

// Keep returns options plus the currently selected one if filtering dropped it,
// so an edit form never loses its own value.
func Keep(filtered, all []Option, value string) []Option {
	if _, ok := Selected(filtered, value); ok {
		return filtered
	}
	if o, ok := Selected(all, value); ok {
		return append([]Option{o}, filtered...)
	}
	return filtered
}
