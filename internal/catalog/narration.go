package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/template"
)

// ErrNarrationMismatch means a deck and its narration script disagree on slides.
var ErrNarrationMismatch = errors.New("narration does not match deck")

//go:embed narration/earnings-trade-narration-with-durations.json
var builtinNarration []byte

// NarrationSlide is one entry of a narration script. Data holds the free-form
// per-slide fields a deck template reads.
type NarrationSlide struct {
	Slide     int            `json:"slide"`
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle"`
	Narration string         `json:"narration"`
	Duration  float64        `json:"duration"`
	Data      map[string]any `json:"data"`
}

// Narration is a decoded narration script.
type Narration struct {
	Title  string           `json:"title"`
	Date   string           `json:"date"`
	Slides []NarrationSlide `json:"slides"`
}

func BuiltinNarration() (*Narration, error) {
	n, err := ParseNarration(builtinNarration)
	if err != nil {
		return nil, fmt.Errorf("builtin narration: %w", err)
	}
	return n, nil
}

func ReadNarration(path string) (*Narration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := ParseNarration(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func ParseNarration(data []byte) (*Narration, error) {
	var n Narration
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if len(n.Slides) == 0 {
		return nil, fmt.Errorf("%w: no slides", ErrNarrationMismatch)
	}
	for i, s := range n.Slides {
		if s.Duration < 0 {
			return nil, fmt.Errorf("slide %d: negative duration %v", i, s.Duration)
		}
	}
	return &n, nil
}

// Slide returns entry i, or ErrNarrationMismatch when the script is too short.
func (n *Narration) Slide(i int) (NarrationSlide, error) {
	if i < 0 || i >= len(n.Slides) {
		return NarrationSlide{}, fmt.Errorf("%w: slide %d requested, script has %d",
			ErrNarrationMismatch, i, len(n.Slides))
	}
	return n.Slides[i], nil
}

// Execute renders a deck template against the script. Unknown data keys fail.
func (n *Narration) Execute(name string, src []byte) ([]byte, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"slide": n.Slide,
			"quote": quote,
		}).
		Parse(string(src))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// quote renders v as a double-quoted YAML scalar.
func quote(v any) string {
	return strconv.Quote(fmt.Sprint(v))
}
