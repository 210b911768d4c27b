package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Layouts accepted for dueDate and reminderDate. The short forms are what
// HTML date and datetime-local inputs submit.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the accepted layouts.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validationf("invalid timestamp %q", s)
}

// immutableKeys are stripped from every decoded body.
var immutableKeys = []string{"id", "_id", "createdAt", "updatedAt"}

func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, validationf("invalid JSON: %v", err)
	}
	if fields == nil {
		return nil, validationf("expected a JSON object")
	}
	for _, k := range immutableKeys {
		delete(fields, k)
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeField[T any](fields map[string]json.RawMessage, key string) (*T, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, validationf("field %s: %v", key, err)
	}
	return &v, nil
}

// decodeTime returns (value, present, error). A present key with null or ""
// yields a nil value, meaning "clear".
func decodeTime(fields map[string]json.RawMessage, key string) (*time.Time, bool, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, false, nil
	}
	if isNull(raw) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, true, validationf("field %s: expected a timestamp string", key)
	}
	if s == "" {
		return nil, true, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, true, err
	}
	return &t, true, nil
}

// DecodeTaskInput decodes a task creation body.
func DecodeTaskInput(data []byte) (TaskInput, error) {
	var in TaskInput
	fields, err := decodeFields(data)
	if err != nil {
		return in, err
	}

	if in.Title, err = stringField(fields, "title"); err != nil {
		return in, err
	}
	if in.Description, err = stringField(fields, "description"); err != nil {
		return in, err
	}
	status, err := stringField(fields, "status")
	if err != nil {
		return in, err
	}
	in.Status = TaskStatus(status)
	priority, err := stringField(fields, "priority")
	if err != nil {
		return in, err
	}
	in.Priority = TaskPriority(priority)
	provider, err := stringField(fields, "aiProvider")
	if err != nil {
		return in, err
	}
	in.AIProvider = Provider(provider)

	if in.DueDate, _, err = decodeTime(fields, "dueDate"); err != nil {
		return in, err
	}
	if in.ReminderDate, _, err = decodeTime(fields, "reminderDate"); err != nil {
		return in, err
	}

	urls, err := decodeField[[]string](fields, "urls")
	if err != nil {
		return in, err
	}
	if urls != nil {
		in.URLs = *urls
	}
	enabled, err := decodeField[bool](fields, "aiEnabled")
	if err != nil {
		return in, err
	}
	if enabled != nil {
		in.AIEnabled = *enabled
	}
	return in, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	v, err := decodeField[string](fields, key)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

// DecodeTaskPatch decodes a partial update body. Keys that cannot be changed
// are ignored, and null clears an optional field.
func DecodeTaskPatch(data []byte) (TaskPatch, error) {
	var p TaskPatch
	fields, err := decodeFields(data)
	if err != nil {
		return p, err
	}

	if p.Title, err = decodeField[string](fields, "title"); err != nil {
		return p, err
	}
	if raw, ok := fields["title"]; ok && isNull(raw) {
		empty := ""
		p.Title = &empty
	}
	if p.Description, err = optionalString(fields, "description"); err != nil {
		return p, err
	}
	if p.Status, err = decodeField[TaskStatus](fields, "status"); err != nil {
		return p, err
	}
	if p.Priority, err = decodeField[TaskPriority](fields, "priority"); err != nil {
		return p, err
	}
	if p.AIEnabled, err = decodeField[bool](fields, "aiEnabled"); err != nil {
		return p, err
	}
	if p.URLs, err = decodeField[[]string](fields, "urls"); err != nil {
		return p, err
	}
	if raw, ok := fields["urls"]; ok && isNull(raw) {
		p.URLs = &[]string{}
	}
	provider, err := optionalString(fields, "aiProvider")
	if err != nil {
		return p, err
	}
	if provider != nil {
		v := Provider(*provider)
		p.AIProvider = &v
	}
	if p.ThreadID, err = optionalString(fields, "threadId"); err != nil {
		return p, err
	}
	if p.AIBrief, err = optionalString(fields, "aiBrief"); err != nil {
		return p, err
	}

	var present bool
	if p.DueDate, present, err = decodeTime(fields, "dueDate"); err != nil {
		return p, err
	}
	p.ClearDueDate = present && p.DueDate == nil
	if p.ReminderDate, present, err = decodeTime(fields, "reminderDate"); err != nil {
		return p, err
	}
	p.ClearReminderDate = present && p.ReminderDate == nil

	return p, p.Validate()
}

// optionalString treats a present null as the empty string.
func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	if isNull(raw) {
		empty := ""
		return &empty, nil
	}
	return decodeField[string](fields, key)
}
