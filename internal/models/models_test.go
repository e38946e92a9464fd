package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_RoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 15, 123456789, time.UTC)
	ts := NewTimestamp(now)

	if ts.Seconds != now.Unix() {
		t.Errorf("Seconds = %d, expected %d", ts.Seconds, now.Unix())
	}
	if ts.Nanoseconds != 123456000 {
		t.Errorf("Nanoseconds = %d, expected truncation to microseconds", ts.Nanoseconds)
	}

	var scanned Timestamp
	v, _ := ts.Value()
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if scanned != ts {
		t.Errorf("scanned = %+v, expected %+v", scanned, ts)
	}
}

func TestTimestamp_ScanString(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"sqlite text", "2026-10-19 08:30:15.5+00:00"},
		{"rfc3339 bytes", []byte("2026-10-19T08:30:15.5Z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := ts.Scan(tt.value); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if ts.Nanoseconds != 500000000 {
				t.Errorf("Nanoseconds = %d, expected 500000000", ts.Nanoseconds)
			}
		})
	}
}

func TestTimestamp_ScanInvalid(t *testing.T) {
	var ts Timestamp
	if err := ts.Scan("yesterday"); err == nil {
		t.Error("Scan should reject unparseable text")
	}
	if err := ts.Scan(42); err == nil {
		t.Error("Scan should reject unsupported types")
	}
}

func TestTimestamp_JSONShape(t *testing.T) {
	data, err := json.Marshal(Timestamp{Seconds: 10, Nanoseconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"seconds":10,"nanoseconds":5}` {
		t.Errorf("json = %s", data)
	}
}

func TestTimestamp_Before(t *testing.T) {
	a := Timestamp{Seconds: 1, Nanoseconds: 10}
	b := Timestamp{Seconds: 1, Nanoseconds: 20}
	c := Timestamp{Seconds: 2}

	if !a.Before(b) || !b.Before(c) || c.Before(a) {
		t.Error("Before ordering is wrong")
	}
}

func TestFieldType(t *testing.T) {
	tests := []struct {
		fieldType    FieldType
		valid        bool
		needsOptions bool
	}{
		{FieldText, true, false},
		{FieldTextarea, true, false},
		{FieldNumber, true, false},
		{FieldChoices, true, true},
		{FieldList, true, true},
		{FieldType("date"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType), func(t *testing.T) {
			if tt.fieldType.Valid() != tt.valid {
				t.Errorf("Valid() = %v, expected %v", tt.fieldType.Valid(), tt.valid)
			}
			if tt.fieldType.NeedsOptions() != tt.needsOptions {
				t.Errorf("NeedsOptions() = %v, expected %v", tt.fieldType.NeedsOptions(), tt.needsOptions)
			}
		})
	}
}

func TestPrompt_TemplateFields(t *testing.T) {
	p := Prompt{Fields: []PromptField{{ID: "f1", Name: "topic", Type: FieldText}}}
	if p.TemplateFields() != nil {
		t.Error("fields of a non-template prompt should be ignored")
	}

	p.IsTemplate = true
	if len(p.TemplateFields()) != 1 {
		t.Errorf("expected 1 field, got %d", len(p.TemplateFields()))
	}
}

func TestPrompt_TagListNeverNil(t *testing.T) {
	var p Prompt
	if p.TagList() == nil {
		t.Error("TagList should return an empty slice")
	}
}

func TestTableNames(t *testing.T) {
	if (Prompt{}).TableName() != "prompts" {
		t.Error("prompts table name changed")
	}
	if (UserProfile{}).TableName() != "users" {
		t.Error("users table name changed")
	}
}
