package scene

// Node is a block resolved for a single frame.
type Node struct {
	Kind     Kind
	Name     string
	Text     string
	Src      string
	Page     int
	URL      string
	Columns  int
	Style    Style
	Children []*Node

	Opacity    float64
	Scale      float64
	TranslateX float64
	TranslateY float64
}

// Visible reports whether the node contributes any pixels.
func (n *Node) Visible() bool {
	return n.Opacity > 0 && n.Scale != 0
}

// Evaluate resolves b at a slide-local frame. Frames outside every animation
// window still produce a defined tree thanks to the curves' clamping.
func Evaluate(b *Block, frame, fps float64) *Node {
	n := &Node{
		Kind:    b.Kind,
		Name:    b.Name,
		Text:    b.Text,
		Src:     b.Src,
		Page:    b.Page,
		URL:     b.URL,
		Columns: b.Columns,
		Style:   b.Style,
		Opacity: 1,
		Scale:   1,
	}
	if b.Style.Opacity != nil {
		n.Opacity = *b.Style.Opacity
	}
	applyAnimations(n, b.Animations, frame, fps)

	if b.Kind == KindStats {
		expandStats(n, b, frame, fps)
		return n
	}

	for i := range b.Children {
		local := frame - b.Stagger.offset(i)
		n.Children = append(n.Children, Evaluate(&b.Children[i], local, fps))
	}
	return n
}

func applyAnimations(n *Node, anims []Animation, frame, fps float64) {
	for i := range anims {
		a := &anims[i]
		v := a.Value(frame, fps)
		switch a.Property {
		case PropOpacity:
			n.Opacity *= v
		case PropScale:
			n.Scale *= v
		case PropTranslateX:
			n.TranslateX += v
		case PropTranslateY:
			n.TranslateY += v
		}
	}
	if n.Opacity < 0 {
		n.Opacity = 0
	}
	if n.Opacity > 1 {
		n.Opacity = 1
	}
}

// expandStats turns a stats block into a grid of value/label cards, one per
// declared field, in declaration order.
func expandStats(n *Node, b *Block, frame, fps float64) {
	n.Kind = KindGrid
	if n.Columns == 0 {
		n.Columns = 2
	}

	for i, s := range b.Stats {
		local := frame - b.Stagger.offset(i)

		card := &Node{
			Kind:    KindCard,
			Name:    s.ID,
			Style:   b.StatStyle.Card,
			Opacity: 1,
			Scale:   1,
		}
		if card.Style.Align == "" {
			card.Style.Align = AlignCenter
		}
		applyAnimations(card, b.ItemAnimations, local, fps)

		valueStyle := b.StatStyle.Value
		if s.Color != "" {
			valueStyle.Color = s.Color
		}
		card.Children = []*Node{
			{Kind: KindText, Name: s.ID + ".value", Text: s.Value, Style: valueStyle, Opacity: 1, Scale: 1},
			{Kind: KindText, Name: s.ID + ".label", Text: s.Label, Style: b.StatStyle.Label, Opacity: 1, Scale: 1},
		}
		n.Children = append(n.Children, card)
	}
}

// Walk visits nodes depth-first until fn returns false.
func Walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node with the given name.
func Find(n *Node, name string) *Node {
	var found *Node
	Walk(n, func(x *Node) bool {
		if x.Name == name {
			found = x
			return false
		}
		return true
	})
	return found
}
