package itinerary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// noDigitKey sorts day labels without a number after every numbered one.
const noDigitKey = 1_000_000_000

var dayNumber = regexp.MustCompile(`\d+`)

type shapeKind int

const (
	// listShape is ["Day 1: ...", "Day 2: ..."].
	listShape shapeKind = iota + 1
	// mapShape is {"day1": "...", "day2": "..."}.
	mapShape
)

// decodedShape is the result of decoding a model reply: which variant
// matched and the day texts it produced, in order.
type decodedShape struct {
	kind shapeKind
	days []string
}

var errUnsupportedShape = errors.New("itinerary must be a JSON list of strings or an object keyed by day")

func decodeItinerary(text []byte) (decodedShape, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return decodedShape{}, errUnsupportedShape
	}

	switch trimmed[0] {
	case '[':
		var days []string
		if err := json.Unmarshal(trimmed, &days); err != nil {
			return decodedShape{}, fmt.Errorf("decode itinerary list: %w", err)
		}
		return decodedShape{kind: listShape, days: days}, nil

	case '{':
		var byDay map[string]any
		if err := json.Unmarshal(trimmed, &byDay); err != nil {
			return decodedShape{}, fmt.Errorf("decode itinerary object: %w", err)
		}
		days := orderByDayKey(byDay)
		if len(days) == 0 {
			return decodedShape{}, errors.New("itinerary object has no day entries")
		}
		return decodedShape{kind: mapShape, days: days}, nil

	default:
		return decodedShape{}, errUnsupportedShape
	}
}

// orderByDayKey sorts entries by the first integer in each key and keeps
// only string values.
func orderByDayKey(byDay map[string]any) []string {
	type entry struct {
		key   string
		order int
		text  string
	}
	entries := make([]entry, 0, len(byDay))
	for k, v := range byDay {
		s, ok := v.(string)
		if !ok {
			continue
		}
		entries = append(entries, entry{key: k, order: dayKey(k), text: s})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].key < entries[j].key
	})

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.text)
	}
	return out
}

func dayKey(label string) int {
	m := dayNumber.FindString(label)
	if m == "" {
		return noDigitKey
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return noDigitKey
	}
	return n
}

// fitToDays truncates or pads days to exactly n entries.
func fitToDays(days []string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < len(days) && i < n; i++ {
		out = append(out, days[i])
	}
	for i := len(out); i < n; i++ {
		out = append(out, fmt.Sprintf("Day %d: Free exploration.", i+1))
	}
	return out
}
