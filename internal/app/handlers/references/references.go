package references

import (
	"context"
	"log/slog"

	"homestay/internal/app/commands"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainreferences "homestay/internal/domain/references"
)

const (
	listReferencesKey = "references.list"
	loadReferencesKey = "references.load"
)

type ListReferencesQuery struct{}

func (ListReferencesQuery) Key() string { return listReferencesKey }

// LoadReferencesCommand upserts a catalog, typically from a fixtures file
// at startup.
type LoadReferencesCommand struct {
	Catalog domainreferences.Catalog
}

func (LoadReferencesCommand) Key() string { return loadReferencesKey }

func (c LoadReferencesCommand) Check() error { return c.Catalog.Validate() }

type Handlers struct {
	Logger     *slog.Logger
	UoWFactory uow.UoWFactory
}

func (h *Handlers) List() queries.Handler[ListReferencesQuery, domainreferences.Catalog] {
	return queries.HandlerFunc[ListReferencesQuery, domainreferences.Catalog](h.list)
}

func (h *Handlers) Load() commands.Handler[LoadReferencesCommand, int] {
	return commands.HandlerFunc[LoadReferencesCommand, int](h.load)
}

func (h *Handlers) list(ctx context.Context, _ ListReferencesQuery) (domainreferences.Catalog, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return domainreferences.Catalog{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.References().Catalog(execCtx)
}

func (h *Handlers) load(ctx context.Context, cmd LoadReferencesCommand) (int, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return 0, err
	}
	if err := unit.References().Upsert(ctx, cmd.Catalog); err != nil {
		return 0, err
	}
	c := cmd.Catalog
	total := len(c.ObjectTypes) + len(c.Categories) + len(c.Amenities) + len(c.HouseRules)
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "reference data loaded",
			"object_types", len(c.ObjectTypes),
			"categories", len(c.Categories),
			"amenities", len(c.Amenities),
			"house_rules", len(c.HouseRules),
		)
	}
	return total, nil
}
