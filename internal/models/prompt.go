package models

import (
	"gorm.io/datatypes"
)

// FieldType is the input kind of a template field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldChoices  FieldType = "choices"
	FieldList     FieldType = "list"
)

// NeedsOptions reports whether the field type requires a non-empty options list.
func (t FieldType) NeedsOptions() bool {
	return t == FieldChoices || t == FieldList
}

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldChoices, FieldList:
		return true
	}
	return false
}

// PromptField is one substitution slot of a template prompt.
type PromptField struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
}

// Prompt is an owned text asset. Fields are only meaningful when IsTemplate is set.
type Prompt struct {
	ID         string                           `gorm:"primaryKey;size:64" json:"id"`
	Title      string                           `gorm:"size:100;not null" json:"title"`
	Content    string                           `gorm:"type:text;not null" json:"content"`
	Tags       datatypes.JSONSlice[string]      `json:"tags"`
	UserID     string                           `gorm:"size:128;index:idx_prompts_owner_created,priority:1;not null" json:"userId"`
	CreatedAt  *Timestamp                       `gorm:"index:idx_prompts_owner_created,priority:2,sort:desc" json:"createdAt"`
	IsTemplate bool                             `gorm:"default:false" json:"isTemplate"`
	Fields     datatypes.JSONSlice[PromptField] `json:"fields"`
}

func (Prompt) TableName() string { return "prompts" }

// TagList returns the prompt's tags, never nil.
func (p *Prompt) TagList() []string {
	if p.Tags == nil {
		return []string{}
	}
	return []string(p.Tags)
}

// TemplateFields returns the substitution schema, or nil for plain prompts.
func (p *Prompt) TemplateFields() []PromptField {
	if !p.IsTemplate {
		return nil
	}
	return []PromptField(p.Fields)
}
