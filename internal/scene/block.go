// Package scene turns declarative slide content into a render tree for one frame.
//
// A Block is what a deck author writes: layout, literal copy, colors and a few
// animation curves keyed to slide-local frames. Evaluate resolves those curves
// for a single frame and returns a Node tree the rasterizer can draw.
package scene

import (
	"errors"
	"fmt"
)

var ErrInvalidBlock = errors.New("scene: invalid block")

type Kind string

const (
	KindColumn Kind = "column"
	KindRow    Kind = "row"
	KindGrid   Kind = "grid"
	KindCard   Kind = "card"
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindQR     Kind = "qr"
	KindStats  Kind = "stats"
	KindSpacer Kind = "spacer"
)

func (k Kind) container() bool {
	switch k {
	case KindColumn, KindRow, KindGrid, KindCard:
		return true
	}
	return false
}

// Align positions content along an axis.
type Align string

const (
	AlignStart   Align = "start"
	AlignCenter  Align = "center"
	AlignEnd     Align = "end"
	AlignBetween Align = "between"
)

func (a Align) valid() bool {
	switch a {
	case "", AlignStart, AlignCenter, AlignEnd, AlignBetween:
		return true
	}
	return false
}

func (s *Style) checkAlign() error {
	if !s.Align.valid() {
		return fmt.Errorf("unknown align %q", s.Align)
	}
	if !s.Justify.valid() {
		return fmt.Errorf("unknown justify %q", s.Justify)
	}
	return nil
}

// Style is the static look of a block. Zero values mean "inherit" for text
// attributes and "none" for box attributes.
type Style struct {
	FontSize   float64  `yaml:"font_size,omitempty"`
	Bold       bool     `yaml:"bold,omitempty"`
	Color      string   `yaml:"color,omitempty"`
	Background string   `yaml:"background,omitempty"`
	Border     string   `yaml:"border,omitempty"`
	Radius     float64  `yaml:"radius,omitempty"`
	Padding    float64  `yaml:"padding,omitempty"`
	Gap        float64  `yaml:"gap,omitempty"`
	Align      Align    `yaml:"align,omitempty"`
	Justify    Align    `yaml:"justify,omitempty"`
	Width      float64  `yaml:"width,omitempty"`
	MaxWidth   float64  `yaml:"max_width,omitempty"`
	Height     float64  `yaml:"height,omitempty"`
	LineHeight float64  `yaml:"line_height,omitempty"`
	Opacity    *float64 `yaml:"opacity,omitempty"`
}

// Stagger delays each child i by Delay + i*Step frames.
type Stagger struct {
	Delay float64 `yaml:"delay"`
	Step  float64 `yaml:"step"`
}

func (s *Stagger) offset(i int) float64 {
	if s == nil {
		return 0
	}
	return s.Delay + float64(i)*s.Step
}

// Stat is one cell of a stats grid: a known field id with its value and label.
type Stat struct {
	ID    string `yaml:"id"`
	Value string `yaml:"value"`
	Label string `yaml:"label"`
	Color string `yaml:"color,omitempty"`
}

// StatStyle styles the cards a stats block expands to.
type StatStyle struct {
	Card  Style `yaml:"card"`
	Value Style `yaml:"value"`
	Label Style `yaml:"label"`
}

// Block is a declarative content node.
type Block struct {
	Kind       Kind        `yaml:"kind"`
	Name       string      `yaml:"name,omitempty"`
	Text       string      `yaml:"text,omitempty"`
	Src        string      `yaml:"src,omitempty"`
	Page       int         `yaml:"page,omitempty"`
	URL        string      `yaml:"url,omitempty"`
	Columns    int         `yaml:"columns,omitempty"`
	Style      Style       `yaml:"style,omitempty"`
	Animations []Animation `yaml:"animations,omitempty"`
	Stagger    *Stagger    `yaml:"stagger,omitempty"`
	Children   []Block     `yaml:"children,omitempty"`

	Stats          []Stat      `yaml:"stats,omitempty"`
	StatStyle      StatStyle   `yaml:"stat_style,omitempty"`
	ItemAnimations []Animation `yaml:"item_animations,omitempty"`
}

// Prepare validates the tree and compiles every animation curve.
// It must run before Evaluate is called concurrently.
func (b *Block) Prepare() error {
	return b.prepare("root")
}

func (b *Block) prepare(path string) error {
	if b.Name != "" {
		path = path + "/" + b.Name
	} else {
		path = path + "/" + string(b.Kind)
	}

	switch b.Kind {
	case KindColumn, KindRow, KindGrid, KindCard, KindSpacer:
	case KindText:
		if b.Text == "" {
			return fmt.Errorf("%w: %s: text block without text", ErrInvalidBlock, path)
		}
	case KindImage:
		if b.Src == "" {
			return fmt.Errorf("%w: %s: image block without src", ErrInvalidBlock, path)
		}
	case KindQR:
		if b.URL == "" {
			return fmt.Errorf("%w: %s: qr block without url", ErrInvalidBlock, path)
		}
	case KindStats:
		if len(b.Stats) == 0 {
			return fmt.Errorf("%w: %s: stats block without stats", ErrInvalidBlock, path)
		}
		seen := make(map[string]bool, len(b.Stats))
		for _, s := range b.Stats {
			if s.ID == "" || seen[s.ID] {
				return fmt.Errorf("%w: %s: stat ids must be unique and non-empty (%q)", ErrInvalidBlock, path, s.ID)
			}
			seen[s.ID] = true
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidBlock, path, b.Kind)
	}

	if len(b.Children) > 0 && !b.Kind.container() {
		return fmt.Errorf("%w: %s: %s blocks cannot have children", ErrInvalidBlock, path, b.Kind)
	}
	for _, st := range []*Style{&b.Style, &b.StatStyle.Card, &b.StatStyle.Value, &b.StatStyle.Label} {
		if err := st.checkAlign(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBlock, path, err)
		}
	}
	if b.Kind == KindGrid && b.Columns < 0 {
		return fmt.Errorf("%w: %s: negative columns", ErrInvalidBlock, path)
	}

	for i := range b.Animations {
		if err := b.Animations[i].compile(); err != nil {
			return fmt.Errorf("%s: animation %d: %w", path, i, err)
		}
	}
	for i := range b.ItemAnimations {
		if err := b.ItemAnimations[i].compile(); err != nil {
			return fmt.Errorf("%s: item animation %d: %w", path, i, err)
		}
	}
	for i := range b.Children {
		if err := b.Children[i].prepare(fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}
