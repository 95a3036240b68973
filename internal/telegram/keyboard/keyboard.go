// Package keyboard builds the inline keyboards of the relay and encodes and
// decodes their callback data.
package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
)

// Callback data prefixes and admin panel actions.
const (
	PrefixAdmin   = "adm:"
	PrefixDefault = "def:"
	PrefixPick    = "pick:"

	ActionToggleMode    = PrefixAdmin + "toggle_mode"
	ActionSetDefault    = PrefixAdmin + "set_default"
	ActionShowKeywords  = PrefixAdmin + "show_keywords"
	ActionResetKeywords = PrefixAdmin + "reset_keywords"
	ActionBack          = PrefixAdmin + "back"
)

// ErrMalformedData is returned for callback data that does not follow the protocol.
var ErrMalformedData = errors.New("malformed callback data")

// PickData encodes a topic decision for a pending unit.
func PickData(unitID int, topicKey string) string {
	return PrefixPick + strconv.Itoa(unitID) + ":" + topicKey
}

// ParsePick decodes "pick:<unit id>:<topic key>".
func ParsePick(data string) (unitID int, topicKey string, err error) {
	rest, ok := strings.CutPrefix(data, PrefixPick)
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedData, data)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedData, data)
	}
	unitID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedData, data)
	}
	return unitID, parts[1], nil
}

// DefaultData encodes a default topic choice.
func DefaultData(topicKey string) string {
	return PrefixDefault + topicKey
}

// ParseDefault decodes "def:<topic key>".
func ParseDefault(data string) (string, bool) {
	key, ok := strings.CutPrefix(data, PrefixDefault)
	return key, ok && key != ""
}

// PanelLabels are the rendered button texts of the admin panel.
type PanelLabels struct {
	Mode          string
	Default       string
	ShowKeywords  string
	ResetKeywords string
}

// AdminPanel renders the admin panel, one button per row.
func AdminPanel(l PanelLabels) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: l.Mode, CallbackData: ActionToggleMode}},
			{{Text: l.Default, CallbackData: ActionSetDefault}},
			{{Text: l.ShowKeywords, CallbackData: ActionShowKeywords}},
			{{Text: l.ResetKeywords, CallbackData: ActionResetKeywords}},
		},
	}
}

// TopicPicker lays topics out two per row with data(key) as callback data.
// A non-empty back label adds a final row returning to the admin panel.
func TopicPicker(topics []routing.Topic, data func(key string) string, back string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, t := range topics {
		row = append(row, models.InlineKeyboardButton{Text: t.Label, CallbackData: data(t.Key)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if back != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: back, CallbackData: ActionBack}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// PickKeyboard offers every topic for the pending unit unitID.
func PickKeyboard(unitID int, topics []routing.Topic) *models.InlineKeyboardMarkup {
	return TopicPicker(topics, func(key string) string { return PickData(unitID, key) }, "")
}
