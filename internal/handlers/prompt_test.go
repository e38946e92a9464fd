package handlers

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/response"
)

func TestPromptHandler_RequiresIdentity(t *testing.T) {
	app := newTestApp(t)

	for _, route := range [][2]string{
		{"GET", "/api/prompts"},
		{"POST", "/api/prompts"},
		{"GET", "/api/prompts/tags"},
		{"DELETE", "/api/prompts/x"},
	} {
		w := app.do(t, route[0], route[1], "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected %d, got %d", route[0], route[1], http.StatusUnauthorized, w.Code)
		}
	}
}

func TestPromptHandler_CreateAndList(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "POST", "/api/prompts", "alice", map[string]interface{}{
		"title":   "  Haiku  ",
		"content": "Write a haiku about {{topic}}",
		"tags":    []string{"poetry", "poetry", "fun"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var created models.Prompt
	decode(t, w, &created)
	if created.ID == "" || created.UserID != "alice" || created.Title != "Haiku" {
		t.Errorf("created = %+v", created)
	}
	if !reflect.DeepEqual(created.TagList(), []string{"poetry", "fun"}) {
		t.Errorf("tags = %v", created.TagList())
	}

	seedPrompt(t, app.db, "bob", "Bob's", "not yours")

	var listed []models.Prompt
	decode(t, app.do(t, "GET", "/api/prompts", "alice", nil), &listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("listed = %+v", listed)
	}
}

func TestPromptHandler_CreateValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "POST", "/api/prompts", "alice", map[string]interface{}{
		"title":      "",
		"content":    "x",
		"isTemplate": true,
		"fields": []map[string]interface{}{
			{"name": "a", "type": "text"},
			{"name": "a", "type": "text"},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var body struct {
		Fields []response.FieldError `json:"fields"`
	}
	env := decode(t, w, &body)
	if env.Kind != response.KindValidation {
		t.Errorf("kind = %q", env.Kind)
	}
	if len(body.Fields) == 0 {
		t.Error("expected field errors")
	}
}

func TestPromptHandler_ListFilters(t *testing.T) {
	app := newTestApp(t)
	seedPrompt(t, app.db, "alice", "Cat haiku", "Write a haiku", "poetry")
	seedPrompt(t, app.db, "alice", "Release notes", "Summarize the changelog", "work")

	tests := []struct {
		query    string
		expected []string
	}{
		{"?tag=poetry", []string{"Cat haiku"}},
		{"?q=CHANGELOG", []string{"Release notes"}},
		{"?tag=work&q=haiku", []string{}},
	}

	for _, tt := range tests {
		var listed []models.Prompt
		decode(t, app.do(t, "GET", "/api/prompts"+tt.query, "alice", nil), &listed)
		titles := []string{}
		for _, p := range listed {
			titles = append(titles, p.Title)
		}
		if !reflect.DeepEqual(titles, tt.expected) {
			t.Errorf("%s: titles = %v, expected %v", tt.query, titles, tt.expected)
		}
	}
}

func TestPromptHandler_Tags(t *testing.T) {
	app := newTestApp(t)
	seedPrompt(t, app.db, "alice", "a", "a", "zeta", "alpha")
	seedPrompt(t, app.db, "alice", "b", "b", "alpha", "mid")
	seedPrompt(t, app.db, "bob", "c", "c", "bobs")

	var tags []string
	decode(t, app.do(t, "GET", "/api/prompts/tags", "alice", nil), &tags)
	if !reflect.DeepEqual(tags, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("tags = %v", tags)
	}
}

func TestPromptHandler_GetByIDHidesOtherOwners(t *testing.T) {
	app := newTestApp(t)
	p := seedPrompt(t, app.db, "bob", "secret", "bob only")

	if w := app.do(t, "GET", "/api/prompts/"+p.ID, "alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("alice: expected %d, got %d", http.StatusNotFound, w.Code)
	}
	if w := app.do(t, "GET", "/api/prompts/"+p.ID, "bob", nil); w.Code != http.StatusOK {
		t.Errorf("bob: expected %d, got %d", http.StatusOK, w.Code)
	}
	if w := app.do(t, "GET", "/api/prompts/missing", "bob", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing: expected %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestPromptHandler_UpdateAndDelete(t *testing.T) {
	app := newTestApp(t)
	p := seedPrompt(t, app.db, "alice", "draft", "body")

	// Warm the cache so the update has something to invalidate.
	app.do(t, "GET", "/api/prompts/"+p.ID, "alice", nil)

	w := app.do(t, "PUT", "/api/prompts/"+p.ID, "alice", map[string]interface{}{"title": "final"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var got models.Prompt
	decode(t, app.do(t, "GET", "/api/prompts/"+p.ID, "alice", nil), &got)
	if got.Title != "final" || got.Content != "body" {
		t.Errorf("after update = %+v", got)
	}

	if w := app.do(t, "DELETE", "/api/prompts/"+p.ID, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected %d, got %d", http.StatusOK, w.Code)
	}
	if w := app.do(t, "GET", "/api/prompts/"+p.ID, "alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("after delete: expected %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestPromptHandler_MutationErrors(t *testing.T) {
	app := newTestApp(t)
	p := seedPrompt(t, app.db, "bob", "bob's", "body")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   response.Kind
	}{
		{"update missing", "PUT", "/api/prompts/missing", map[string]string{"title": "x"}, http.StatusNotFound, response.KindNotFound},
		{"update not owner", "PUT", "/api/prompts/" + p.ID, map[string]string{"title": "x"}, http.StatusUnauthorized, response.KindUnauthorized},
		{"delete not owner", "DELETE", "/api/prompts/" + p.ID, nil, http.StatusUnauthorized, response.KindUnauthorized},
		{"delete missing", "DELETE", "/api/prompts/missing", nil, http.StatusNotFound, response.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, tt.method, tt.path, "alice", tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if env := decode(t, w, nil); env.Kind != tt.kind {
				t.Errorf("kind = %q, expected %q", env.Kind, tt.kind)
			}
		})
	}

	var stored models.Prompt
	app.db.First(&stored, "id = ?", p.ID)
	if stored.Title != "bob's" {
		t.Errorf("record changed by non-owner: %+v", stored)
	}
}

func TestPromptHandler_Render(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, "POST", "/api/prompts", "alice", map[string]interface{}{
		"title":      "Story",
		"content":    "Write a {{length}} word story about {{topic}} in {{style}}",
		"isTemplate": true,
		"fields": []map[string]interface{}{
			{"name": "length", "type": "number"},
			{"name": "topic", "type": "text"},
			{"name": "style", "type": "choices", "options": []string{"prose", "verse"}},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created models.Prompt
	decode(t, w, &created)

	w = app.do(t, "POST", "/api/prompts/"+created.ID+"/render", "alice", map[string]interface{}{
		"values": map[string]interface{}{"length": 500, "topic": "cats"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("render: expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var out struct {
		Content    string                     `json:"content"`
		Unresolved []string                   `json:"unresolved"`
		Spans      []services.PlaceholderSpan `json:"spans"`
	}
	decode(t, w, &out)
	if out.Content != "Write a 500 word story about cats in {{style}}" {
		t.Errorf("content = %q", out.Content)
	}
	if !reflect.DeepEqual(out.Unresolved, []string{"style"}) {
		t.Errorf("unresolved = %v", out.Unresolved)
	}
	if len(out.Spans) != 1 || out.Spans[0].Name != "style" {
		t.Errorf("spans = %+v", out.Spans)
	}
}

func TestPromptHandler_RenderBadValue(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, "POST", "/api/prompts", "alice", map[string]interface{}{
		"title":      "Count",
		"content":    "{{n}}",
		"isTemplate": true,
		"fields":     []map[string]interface{}{{"name": "n", "type": "number"}},
	})
	var created models.Prompt
	decode(t, w, &created)

	w = app.do(t, "POST", "/api/prompts/"+created.ID+"/render", "alice", map[string]interface{}{
		"values": map[string]interface{}{"n": "many"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, w.Code)
	}

	if w := app.do(t, "POST", "/api/prompts/"+created.ID+"/render", "bob", map[string]interface{}{}); w.Code != http.StatusNotFound {
		t.Errorf("other owner: expected %d, got %d", http.StatusNotFound, w.Code)
	}
}
