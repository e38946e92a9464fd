package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/response"
)

const (
	MaxTitleLength  = 100
	MaxOptionLength = 100
)

// PromptInput is the full client-editable shape of a prompt.
type PromptInput struct {
	Title      string               `json:"title" validate:"required,max=100"`
	Content    string               `json:"content" validate:"required"`
	Tags       []string             `json:"tags"`
	IsTemplate bool                 `json:"isTemplate"`
	Fields     []models.PromptField `json:"fields" validate:"omitempty,unique=Name,dive"`
}

// PromptPatch is a partial update; nil members are left unchanged.
type PromptPatch struct {
	Title      *string               `json:"title"`
	Content    *string               `json:"content"`
	Tags       *[]string             `json:"tags"`
	IsTemplate *bool                 `json:"isTemplate"`
	Fields     *[]models.PromptField `json:"fields"`
}

// Empty reports whether the patch changes nothing.
func (p PromptPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.IsTemplate == nil && p.Fields == nil
}

// Apply returns the input that results from patching current.
func (p PromptPatch) Apply(current *models.Prompt) PromptInput {
	in := PromptInput{
		Title:      current.Title,
		Content:    current.Content,
		Tags:       current.TagList(),
		IsTemplate: current.IsTemplate,
		Fields:     []models.PromptField(current.Fields),
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Content != nil {
		in.Content = *p.Content
	}
	if p.Tags != nil {
		in.Tags = *p.Tags
	}
	if p.IsTemplate != nil {
		in.IsTemplate = *p.IsTemplate
	}
	if p.Fields != nil {
		in.Fields = *p.Fields
	}
	return in
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validatePromptField, models.PromptField{})
	return v
}

func validatePromptField(sl validator.StructLevel) {
	field := sl.Current().Interface().(models.PromptField)

	if strings.TrimSpace(field.Name) == "" {
		sl.ReportError(field.Name, "name", "Name", "required", "")
	}
	if !field.Type.Valid() {
		sl.ReportError(field.Type, "type", "Type", "field_type", "")
		return
	}

	if !field.Type.NeedsOptions() {
		if len(field.Options) > 0 {
			sl.ReportError(field.Options, "options", "Options", "excluded_options", string(field.Type))
		}
		return
	}
	if len(field.Options) == 0 {
		sl.ReportError(field.Options, "options", "Options", "required_options", string(field.Type))
		return
	}
	for _, opt := range field.Options {
		if strings.TrimSpace(opt) == "" || utf8.RuneCountInString(opt) > MaxOptionLength {
			sl.ReportError(field.Options, "options", "Options", "option_length", fmt.Sprint(MaxOptionLength))
			return
		}
	}
}

// normalize trims the title, drops blank and repeated tags, clears fields on
// plain prompts and gives every field a unique id.
func (in PromptInput) normalize() PromptInput {
	in.Title = strings.TrimSpace(in.Title)

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]bool, len(in.Tags))
	for _, tag := range in.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	in.Tags = tags

	if !in.IsTemplate {
		in.Fields = nil
		return in
	}

	fields := make([]models.PromptField, len(in.Fields))
	ids := make(map[string]bool, len(in.Fields))
	for i, f := range in.Fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.ID == "" || ids[f.ID] {
			f.ID = uuid.New().String()
		}
		ids[f.ID] = true
		if !f.Type.NeedsOptions() && len(f.Options) == 0 {
			f.Options = nil
		}
		fields[i] = f
	}
	in.Fields = fields
	return in
}

// ValidatePrompt normalizes in and checks it. Failures are KindValidation
// AppErrors carrying one FieldError per violation.
func ValidatePrompt(in PromptInput) (PromptInput, error) {
	in = in.normalize()

	err := validate.Struct(in)
	if err == nil {
		return in, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return in, response.NewBadRequest(err.Error())
	}

	fields := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, response.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: validationMessage(fe),
		})
	}
	return in, response.NewValidation("invalid prompt", fields)
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "unique":
		return "field names must be unique within a prompt"
	case "field_type":
		return "type must be one of text, textarea, number, choices, list"
	case "required_options":
		return fmt.Sprintf("options are required for %s fields", fe.Param())
	case "excluded_options":
		return fmt.Sprintf("options are not allowed for %s fields", fe.Param())
	case "option_length":
		return fmt.Sprintf("each option must be 1 to %s characters", fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
