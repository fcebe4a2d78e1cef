package widgets

import (
	"context"

	"golang.org/x/text/language"

	"github.com/morezero/json-bridge/pkg/coerce"
	"github.com/morezero/json-bridge/pkg/operation"
)

// LegacyWidget is the version 1 rendering of a widget: prices are display strings.
type LegacyWidget struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

// LegacyAPI serves the version 1 operations over a Store.
type LegacyAPI struct {
	store  *Store
	locale language.Tag
}

// NewLegacyAPI returns the version 1 view of store. Prices are rendered for locale.
func NewLegacyAPI(store *Store, locale language.Tag) *LegacyAPI {
	return &LegacyAPI{store: store, locale: locale}
}

// Declarations implements operation.Declarer.
func (a *LegacyAPI) Declarations() []operation.Declaration {
	return []operation.Declaration{
		{Method: "GetWidget", Params: []operation.ParamDeclaration{{Name: "id"}}, Description: "Get one widget by id."},
		{Method: "ListWidgets", Alias: "widgets", Params: []operation.ParamDeclaration{}, Description: "List every widget."},
	}
}

// GetWidget returns the widget with id.
func (a *LegacyAPI) GetWidget(ctx context.Context, id string) (LegacyWidget, error) {
	w, err := a.store.GetWidget(ctx, id)
	if err != nil {
		return LegacyWidget{}, err
	}
	return a.render(w), nil
}

// ListWidgets returns every widget.
func (a *LegacyAPI) ListWidgets(ctx context.Context) []LegacyWidget {
	all := a.store.ListWidgets(ctx, "")
	out := make([]LegacyWidget, len(all))
	for i, w := range all {
		out[i] = a.render(w)
	}
	return out
}

func (a *LegacyAPI) render(w Widget) LegacyWidget {
	return LegacyWidget{ID: w.SKU, Title: w.Name, Price: coerce.Render(w.Price, a.locale), Stock: w.Quantity}
}
