package section

import (
	"strings"
	"time"
)

// Content is what one cycle publishes: optional text, optional embed.
type Content struct {
	Text  string
	Embed *Embed
}

// Empty reports whether there is nothing to publish.
func (c Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && (c.Embed == nil || c.Embed.Empty())
}

// Embed is a publisher-neutral rich block. Publishers map it onto their own
// formats (a Discord embed, Telegram HTML).
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	ImageURL    string
	Footer      string
	Timestamp   time.Time
	Fields      []Field
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

func (e *Embed) Empty() bool {
	if e == nil {
		return true
	}
	return e.Title == "" && e.Description == "" && e.ImageURL == "" && e.Footer == "" && len(e.Fields) == 0
}

// AddField appends a field and returns the embed for chaining.
func (e *Embed) AddField(name, value string, inline bool) *Embed {
	e.Fields = append(e.Fields, Field{Name: name, Value: value, Inline: inline})
	return e
}

// FieldValue returns the value of the first field called name.
func (e *Embed) FieldValue(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
