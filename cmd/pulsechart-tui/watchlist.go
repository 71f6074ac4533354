package main

import (
	"fmt"
	"sort"
	"sync"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

const watchlistName = "pulsechart"

type watchlist interface {
	Symbols() ([]string, error)
	Add(symbol string) error
}

// alpacaWatchlist keeps the symbol rotation in an Alpaca account watchlist so
// it follows the user between machines.
type alpacaWatchlist struct {
	client *alpacaapi.Client

	mu sync.Mutex
	id string
}

func newAlpacaWatchlist(client *alpacaapi.Client) *alpacaWatchlist {
	return &alpacaWatchlist{client: client}
}

// Symbols gets or creates the "pulsechart" watchlist and returns its symbols.
func (w *alpacaWatchlist) Symbols() ([]string, error) {
	lists, err := w.client.GetWatchlists()
	if err != nil {
		return nil, fmt.Errorf("listing watchlists: %w", err)
	}
	for _, l := range lists {
		if l.Name != watchlistName {
			continue
		}
		// GetWatchlists doesn't include assets; fetch the full watchlist.
		full, err := w.client.GetWatchlist(l.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching watchlist: %w", err)
		}
		w.setID(l.ID)
		syms := make([]string, 0, len(full.Assets))
		for _, a := range full.Assets {
			syms = append(syms, a.Symbol)
		}
		sort.Strings(syms)
		return syms, nil
	}

	created, err := w.client.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: watchlistName})
	if err != nil {
		return nil, fmt.Errorf("creating watchlist: %w", err)
	}
	w.setID(created.ID)
	return nil, nil
}

// Add appends symbol to the watchlist, creating the list on first use.
func (w *alpacaWatchlist) Add(symbol string) error {
	id := w.getID()
	if id == "" {
		if _, err := w.Symbols(); err != nil {
			return err
		}
		id = w.getID()
	}
	if _, err := w.client.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: symbol}); err != nil {
		return fmt.Errorf("adding %s: %w", symbol, err)
	}
	return nil
}

func (w *alpacaWatchlist) setID(id string) {
	w.mu.Lock()
	w.id = id
	w.mu.Unlock()
}

func (w *alpacaWatchlist) getID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}
