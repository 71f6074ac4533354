package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	PanLeft   key.Binding
	PanRight  key.Binding
	Reset     key.Binding
	Timeframe key.Binding
	Buffer    key.Binding
	NextSym   key.Binding
	PrevSym   key.Binding
	Watch     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
	PanLeft:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "pan left")),
	PanRight:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "pan right")),
	Reset:     key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset")),
	Timeframe: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "timeframe")),
	Buffer:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "buffer")),
	NextSym:   key.NewBinding(key.WithKeys("n", "down"), key.WithHelp("n", "next symbol")),
	PrevSym:   key.NewBinding(key.WithKeys("p", "up"), key.WithHelp("p", "prev symbol")),
	Watch:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "watchlist")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.PanLeft, k.PanRight, k.Reset, k.Timeframe, k.Buffer, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ZoomIn, k.ZoomOut, k.PanLeft, k.PanRight, k.Reset},
		{k.Timeframe, k.Buffer, k.NextSym, k.PrevSym, k.Watch},
		{k.Help, k.Quit},
	}
}
