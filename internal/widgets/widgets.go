// Package widgets is the in-memory widget catalog the bridge ships as its demo service.
// Version 2 is Store; version 1 is LegacyAPI, a thin view over the same Store.
package widgets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/morezero/json-bridge/pkg/coerce"
	"github.com/morezero/json-bridge/pkg/operation"
)

const logPrefix = "widgets:store"

var (
	ErrNotFound          = errors.New("widget not found")
	ErrExists            = errors.New("widget already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalid           = errors.New("invalid widget")
)

// Widget is one catalog item.
type Widget struct {
	SKU      string           `json:"sku"`
	Name     string           `json:"name"`
	Price    float64          `json:"price"`
	Quantity int              `json:"quantity"`
	Colour   Colour           `json:"colour"`
	Tags     []string         `json:"tags,omitempty"`
	Released coerce.LocalDate `json:"released"`
	Tenant   string           `json:"tenant,omitempty"`
}

// Quote is the price of a quantity of one widget, rendered for a locale.
type Quote struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
	Locale   string  `json:"locale"`
	Display  string  `json:"display"`
}

// Store holds widgets keyed by SKU. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	widgets map[string]Widget
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{widgets: make(map[string]Widget)}
}

// NewSeededStore returns a store holding the demo widgets.
func NewSeededStore() *Store {
	s := NewStore()
	for _, w := range seed() {
		s.widgets[w.SKU] = w
	}
	return s
}

// Declarations implements operation.Declarer.
func (s *Store) Declarations() []operation.Declaration {
	return []operation.Declaration{
		{Method: "GetWidget", Params: []operation.ParamDeclaration{{Name: "sku"}}, Description: "Get one widget by SKU."},
		{Method: "ListWidgets", Alias: "widgets", Params: []operation.ParamDeclaration{{Name: "tenant", Header: true}}, Description: "List widgets, optionally for one tenant."},
		{Method: "CreateWidget", Params: []operation.ParamDeclaration{{Name: "tenant", Header: true}, {Name: "widget"}}, Description: "Add a widget."},
		{Method: "UpdatePrice", Alias: "updateWidget", Params: []operation.ParamDeclaration{{Name: "sku"}, {Name: "price"}}, Description: "Change the price of a widget."},
		{Method: "DeleteWidget", Params: []operation.ParamDeclaration{{Name: "sku"}}, Description: "Remove a widget."},
		{Method: "Reserve", Params: []operation.ParamDeclaration{{Name: "sku"}, {Name: "quantity"}}, Description: "Take stock of a widget."},
		{Method: "FindByName", Alias: "find", Params: []operation.ParamDeclaration{{Name: "name"}}, Description: "Find widgets whose name contains a string."},
		{Method: "FindByColour", Alias: "find", Params: []operation.ParamDeclaration{{Name: "colour"}}, Description: "Find widgets of one colour."},
		{Method: "ReleasedSince", Alias: "released", Params: []operation.ParamDeclaration{{Name: "since"}}, Description: "Widgets released on or after a date."},
		{Method: "ReleasedBetween", Alias: "released", Params: []operation.ParamDeclaration{{Name: "from"}, {Name: "to"}}, Description: "Widgets released within a date range."},
		{Method: "ReleasedIn", Alias: "released", Params: []operation.ParamDeclaration{{Name: "years"}}, Description: "Widgets released in any of the given years."},
		{Method: "Quote", Params: []operation.ParamDeclaration{{Name: "sku"}, {Name: "quantity"}, {Name: "locale"}}, Description: "Price a quantity of a widget for a locale."},
		{Method: "Restock", Hidden: true},
	}
}

// GetWidget returns the widget with sku.
func (s *Store) GetWidget(ctx context.Context, sku string) (Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[sku]
	if !ok {
		return Widget{}, fmt.Errorf("%w: %s", ErrNotFound, sku)
	}
	return w, nil
}

// ListWidgets returns every widget, or only those of tenant when it is set, ordered by SKU.
func (s *Store) ListWidgets(ctx context.Context, tenant string) []Widget {
	return s.filter(func(w Widget) bool {
		return tenant == "" || w.Tenant == tenant
	})
}

// CreateWidget adds w on behalf of tenant.
func (s *Store) CreateWidget(ctx context.Context, tenant string, w Widget) (Widget, error) {
	w.SKU = strings.TrimSpace(w.SKU)
	if w.SKU == "" || w.Name == "" {
		return Widget{}, fmt.Errorf("%w: sku and name are required", ErrInvalid)
	}
	if w.Price < 0 || w.Quantity < 0 {
		return Widget{}, fmt.Errorf("%w: price and quantity must not be negative", ErrInvalid)
	}
	if tenant != "" {
		w.Tenant = tenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.widgets[w.SKU]; ok {
		return Widget{}, fmt.Errorf("%w: %s", ErrExists, w.SKU)
	}
	s.widgets[w.SKU] = w
	slog.Info(fmt.Sprintf("%s - Created widget %s for tenant %q", logPrefix, w.SKU, w.Tenant))
	return w, nil
}

// UpdatePrice sets the price of a widget.
func (s *Store) UpdatePrice(ctx context.Context, sku string, price float64) (Widget, error) {
	if price < 0 {
		return Widget{}, fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	return s.update(sku, func(w *Widget) error {
		w.Price = price
		return nil
	})
}

// DeleteWidget removes a widget.
func (s *Store) DeleteWidget(ctx context.Context, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.widgets[sku]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sku)
	}
	delete(s.widgets, sku)
	slog.Info(fmt.Sprintf("%s - Deleted widget %s", logPrefix, sku))
	return nil
}

// Reserve takes quantity units of a widget out of stock.
func (s *Store) Reserve(ctx context.Context, sku string, quantity int) (Widget, error) {
	if quantity <= 0 {
		return Widget{}, fmt.Errorf("%w: quantity must be positive", ErrInvalid)
	}
	return s.update(sku, func(w *Widget) error {
		if w.Quantity < quantity {
			return fmt.Errorf("%w: %s has %d, %d requested", ErrInsufficientStock, sku, w.Quantity, quantity)
		}
		w.Quantity -= quantity
		return nil
	})
}

// Restock adds units of a widget. It is not exposed to callers.
func (s *Store) Restock(ctx context.Context, sku string, quantity int) (Widget, error) {
	return s.update(sku, func(w *Widget) error {
		w.Quantity += quantity
		return nil
	})
}

// FindByName returns widgets whose name contains name, ignoring case.
func (s *Store) FindByName(name string) []Widget {
	needle := strings.ToLower(name)
	return s.filter(func(w Widget) bool {
		return strings.Contains(strings.ToLower(w.Name), needle)
	})
}

// FindByColour returns widgets of colour c.
func (s *Store) FindByColour(c Colour) []Widget {
	return s.filter(func(w Widget) bool { return w.Colour == c })
}

// ReleasedSince returns widgets released on or after since.
func (s *Store) ReleasedSince(since coerce.LocalDate) []Widget {
	return s.ReleasedBetween(since, coerce.LocalDate{Year: 9999, Month: 12, Day: 31})
}

// ReleasedBetween returns widgets released within [from, to].
func (s *Store) ReleasedBetween(from, to coerce.LocalDate) []Widget {
	return s.filter(func(w Widget) bool {
		return !before(w.Released, from) && !before(to, w.Released)
	})
}

// ReleasedIn returns widgets released in any of years.
func (s *Store) ReleasedIn(years []int) []Widget {
	wanted := make(map[int]bool, len(years))
	for _, y := range years {
		wanted[y] = true
	}
	return s.filter(func(w Widget) bool { return wanted[w.Released.Year] })
}

// Quote prices quantity units of a widget and renders the total for locale.
func (s *Store) Quote(ctx context.Context, sku string, quantity int, locale language.Tag) (Quote, error) {
	w, err := s.GetWidget(ctx, sku)
	if err != nil {
		return Quote{}, err
	}
	if quantity <= 0 {
		return Quote{}, fmt.Errorf("%w: quantity must be positive", ErrInvalid)
	}
	total := w.Price * float64(quantity)
	return Quote{
		SKU:      sku,
		Quantity: quantity,
		Total:    total,
		Locale:   locale.String(),
		Display:  coerce.Render(total, locale),
	}, nil
}

func (s *Store) update(sku string, fn func(*Widget) error) (Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.widgets[sku]
	if !ok {
		return Widget{}, fmt.Errorf("%w: %s", ErrNotFound, sku)
	}
	if err := fn(&w); err != nil {
		return Widget{}, err
	}
	s.widgets[sku] = w
	return w, nil
}

func (s *Store) filter(keep func(Widget) bool) []Widget {
	s.mu.RLock()
	out := make([]Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		if keep(w) {
			out = append(out, w)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func before(a, b coerce.LocalDate) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}

func seed() []Widget {
	return []Widget{
		{SKU: "W-100", Name: "Sprocket", Price: 4.5, Quantity: 120, Colour: Colour{R: 0xcc, G: 0x33, B: 0x33}, Tags: []string{"metal"}, Released: coerce.LocalDate{Year: 2021, Month: 3, Day: 14}},
		{SKU: "W-200", Name: "Flange", Price: 12.75, Quantity: 40, Colour: Colour{R: 0x33, G: 0x66, B: 0xcc}, Released: coerce.LocalDate{Year: 2023, Month: 9, Day: 1}, Tenant: "acme"},
		{SKU: "W-300", Name: "Gear Sprocket", Price: 1249.99, Quantity: 3, Colour: Colour{R: 0xcc, G: 0x33, B: 0x33}, Tags: []string{"metal", "heavy"}, Released: coerce.LocalDate{Year: 2025, Month: 1, Day: 20}, Tenant: "acme"},
	}
}
