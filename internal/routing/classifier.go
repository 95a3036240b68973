package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// TopicKeywords holds the keywords routed to one topic.
type TopicKeywords struct {
	Topic    string
	Keywords []string
}

// KeywordTable is the ordered topic → keywords mapping. Table order is the
// classification priority: the first topic with a matching keyword wins.
type KeywordTable []TopicKeywords

// Clone returns a deep copy of the table.
func (t KeywordTable) Clone() KeywordTable {
	if t == nil {
		return nil
	}
	out := make(KeywordTable, len(t))
	for i, e := range t {
		out[i] = TopicKeywords{Topic: e.Topic, Keywords: append(make([]string, 0, len(e.Keywords)), e.Keywords...)}
	}
	return out
}

// Keywords returns the keywords of a topic.
func (t KeywordTable) Keywords(topic string) ([]string, bool) {
	for _, e := range t {
		if e.Topic == topic {
			return e.Keywords, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the table as a JSON object whose key order is the table order.
func (t KeywordTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Topic)
		if err != nil {
			return nil, err
		}
		words := e.Keywords
		if words == nil {
			words = []string{}
		}
		val, err := json.Marshal(words)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of topic → keyword arrays, keeping the
// document's key order.
func (t *KeywordTable) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("keyword table: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("keyword table: expected object, got %s", root.Type)
	}

	var (
		table KeywordTable
		err   error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			err = fmt.Errorf("keyword table: topic %q: expected array", key.String())
			return false
		}
		entry := TopicKeywords{Topic: key.String(), Keywords: []string{}}
		for _, w := range value.Array() {
			if w.Type != gjson.String {
				err = fmt.Errorf("keyword table: topic %q: non-string keyword %s", key.String(), w.Raw)
				return false
			}
			entry.Keywords = append(entry.Keywords, w.Str)
		}
		table = append(table, entry)
		return true
	})
	if err != nil {
		return err
	}
	if table == nil {
		table = KeywordTable{}
	}
	*t = table
	return nil
}

// Normalize lower-cases s and collapses every whitespace run to one space.
func Normalize(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(s), " ")
}

// Classify returns the key of the first topic in table order that has a
// keyword contained in text, testing each topic's keywords longest first.
// Empty text or no match yields defaultTopic.
func Classify(text string, table KeywordTable, defaultTopic string) string {
	t := Normalize(text)
	if strings.TrimSpace(t) == "" {
		return defaultTopic
	}
	for _, e := range table {
		for _, w := range byLengthDesc(e.Keywords) {
			w = Normalize(w)
			if strings.TrimSpace(w) != "" && strings.Contains(t, w) {
				return e.Topic
			}
		}
	}
	return defaultTopic
}

// byLengthDesc orders keywords by rune count, longest first, keeping the
// original order between keywords of equal length.
func byLengthDesc(words []string) []string {
	sorted := append([]string(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})
	return sorted
}
