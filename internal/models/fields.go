package models

import "sort"

// Attribute groups of a card. A card's current value for any attribute is
// derived from its edit stream; these tables define which column each
// attribute lives in and how its value is typed.

// Visibility states. Transitions between them are ordinary edits; a purged
// card's events are never removed.
const (
	VisibilityVisible = "visible"
	VisibilityDeleted = "deleted"
	VisibilityPurged  = "purged"
)

// BaseDeck is the reserved name of the full collection.
const BaseDeck = "cards"

var dateFields = map[string]bool{
	"create_date":      true,
	"due_date":         true,
	"last_edit_date":   true,
	"last_review_date": true,
}

var textFields = map[string]bool{
	"front_text": true,
	"back_text":  true,
	"extra":      true,
	"hint":       true,
	"source":     true,
	"spelltest":  true,
	"card_type":  true,
	"visibility": true,
}

var mediaRefFields = map[string]bool{
	"front_image_id":  true,
	"back_image_id":   true,
	"front_audio_id":  true,
	"back_audio_id":   true,
	"diagram_id":      true,
	"diagram_data_id": true,
}

var timeFields = map[string]bool{
	"edit_seconds":   true,
	"review_seconds": true,
	"total_seconds":  true,
}

// Virtual media attributes resolve through their "<name>_id" reference and
// the media store; they are never stored directly.
var virtualMediaFields = map[string]bool{
	"front_image":  true,
	"back_image":   true,
	"front_audio":  true,
	"back_audio":   true,
	"diagram":      true,
	"diagram_data": true,
}

// editableFields is the closed set accepted by the update contract. The id
// is immutable and the derived date/time aggregates are never written.
var editableFields = map[string]bool{
	"front_text": true, "back_text": true, "extra": true, "hint": true,
	"source": true, "spelltest": true, "card_type": true, "visibility": true,
	"due_date":       true,
	"front_image_id": true, "back_image_id": true,
	"front_audio_id": true, "back_audio_id": true,
	"diagram_id": true, "diagram_data_id": true,
}

func IsDateField(name string) bool    { return dateFields[name] }
func IsTextField(name string) bool    { return textFields[name] }
func IsMediaRef(name string) bool     { return mediaRefFields[name] }
func IsTimeField(name string) bool    { return timeFields[name] }
func IsVirtualMedia(name string) bool { return virtualMediaFields[name] }
func IsEditable(name string) bool     { return editableFields[name] }

// IsField reports whether name is any known card attribute.
func IsField(name string) bool {
	return name == "id" || dateFields[name] || textFields[name] ||
		mediaRefFields[name] || timeFields[name] || virtualMediaFields[name]
}

// IsEditColumn reports whether name is a concrete column of the edits
// stream. Only these may appear in an appended edit record.
func IsEditColumn(name string) bool {
	return editableFields[name]
}

// MediaRef maps a virtual media attribute to its backing reference
// attribute, e.g. "front_image" to "front_image_id".
func MediaRef(virtual string) string {
	return virtual + "_id"
}

// EditableFields returns the editable attribute names, sorted, for error
// messages.
func EditableFields() []string {
	names := make([]string, 0, len(editableFields)+len(virtualMediaFields))
	for name := range editableFields {
		names = append(names, name)
	}
	for name := range virtualMediaFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidVisibility reports whether s is one of the three visibility states.
func ValidVisibility(s string) bool {
	switch s {
	case VisibilityVisible, VisibilityDeleted, VisibilityPurged:
		return true
	}
	return false
}
