// Package indices holds the document store mapping templates.
package indices

import (
	"context"
	"embed"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/repository/docstore"
)

//go:embed templates/*.json
var templates embed.FS

// Names lists every index the service owns.
var Names = []string{domain.IndexAccounts, domain.IndexInvalidations}

// Template returns the mapping template of an index, or nil when none is bundled.
func Template(name string) []byte {
	raw, err := templates.ReadFile("templates/" + name + ".json")
	if err != nil {
		return nil
	}
	return raw
}

// EnsureAll creates every missing index from its template.
func EnsureAll(ctx context.Context, store docstore.Gateway) {
	for _, name := range Names {
		store.EnsureIndex(ctx, name, Template(name))
	}
}
