// Package catalog loads deck definitions into a composition registry.
//
// Built-in decks are embedded YAML documents. Files ending in .yaml.tmpl are
// text/template sources bound to a narration script before decoding.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/marketreel/internal/composition"
)

//go:embed decks/*.yaml decks/*.yaml.tmpl
var decksFS embed.FS

const (
	deckExt     = ".yaml"
	templateExt = ".yaml.tmpl"
)

// Variant re-registers a deck under another id and geometry.
type Variant struct {
	ID             string `yaml:"id"`
	Title          string `yaml:"title,omitempty"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	DeclaredFrames int    `yaml:"declared_frames,omitempty"`
}

type deck struct {
	composition.Composition `yaml:",inline"`
	Variants                []Variant `yaml:"variants,omitempty"`
}

// Builtin returns a registry holding every embedded deck.
func Builtin() (*composition.Registry, error) {
	narration, err := BuiltinNarration()
	if err != nil {
		return nil, err
	}

	reg := composition.NewRegistry()
	sub, err := fs.Sub(decksFS, "decks")
	if err != nil {
		return nil, err
	}
	if err := LoadFS(reg, sub, narration); err != nil {
		return nil, fmt.Errorf("builtin decks: %w", err)
	}
	return reg, nil
}

// LoadDir adds the decks found in dir to reg. Templates in dir bind to
// dir/narration.json when present and to the built-in script otherwise.
func LoadDir(reg *composition.Registry, dir string) error {
	narration, err := ReadNarration(filepath.Join(dir, "narration.json"))
	if errors.Is(err, fs.ErrNotExist) {
		narration, err = BuiltinNarration()
	}
	if err != nil {
		return err
	}
	if err := LoadFS(reg, os.DirFS(dir), narration); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	return nil
}

// LoadFS registers every deck at the root of fsys in file-name order.
func LoadFS(reg *composition.Registry, fsys fs.FS, narration *Narration) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), deckExt) || strings.HasSuffix(e.Name(), templateExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := loadDeck(reg, name, data, narration); err != nil {
			return err
		}
	}
	return nil
}

func loadDeck(reg *composition.Registry, name string, data []byte, narration *Narration) error {
	templated := strings.HasSuffix(name, templateExt)
	if templated {
		if narration == nil {
			return fmt.Errorf("%s: template deck needs a narration script", name)
		}
		rendered, err := narration.Execute(name, data)
		if err != nil {
			return err
		}
		data = rendered
	}

	comps, err := decodeDecks(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	for _, c := range comps {
		if templated && len(c.Slides) != len(narration.Slides) {
			return fmt.Errorf("%w: %s: %s has %d slides, narration has %d",
				ErrNarrationMismatch, name, c.ID, len(c.Slides), len(narration.Slides))
		}
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// decodeDecks reads every YAML document in data, expanding variants.
func decodeDecks(data []byte) ([]*composition.Composition, error) {
	var out []*composition.Composition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		var d deck
		if err := node.Decode(&d); err != nil {
			return nil, err
		}
		base := d.Composition
		out = append(out, &base)

		for _, v := range d.Variants {
			// decode again so variants share no slices with the base deck
			var copyDeck deck
			if err := node.Decode(&copyDeck); err != nil {
				return nil, err
			}
			c := copyDeck.Composition
			c.ID = v.ID
			c.Width, c.Height = v.Width, v.Height
			c.DeclaredFrames = v.DeclaredFrames
			if v.Title != "" {
				c.Title = v.Title
			}
			out = append(out, &c)
		}
	}
	return out, nil
}
