package domain

import (
	"time"
)

// Source indica quién escribió una fila de la cache.
type Source string

const (
	SourceLedger     Source = "ledger"     // pasada autoritativa del reconciler
	SourceOptimistic Source = "optimistic" // escritura local justo después de enviar una transacción
)

// CacheRow es la proyección desnormalizada de un Market en la cache,
// con clave (Market.Network, Market.ID).
type CacheRow struct {
	Market    Market
	Source    Source
	WriteID   string
	CachedAt  time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time // solo filas optimistas
}

// Expired indica si una fila optimista superó su TTL.
func (r CacheRow) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// AcceptAuthoritative decide si una fila del ledger reemplaza a la guardada.
// Con timestamps iguales se acepta: reaplicar un snapshot no cambia nada.
func AcceptAuthoritative(existing *CacheRow, incoming CacheRow) bool {
	if existing == nil {
		return true
	}
	return !incoming.UpdatedAt.Before(existing.UpdatedAt)
}

// AcceptOptimistic decide si una fila optimista puede ir encima de base
// (la fila autoritativa) y del overlay actual, si lo hay.
func AcceptOptimistic(base, overlay *CacheRow, incoming CacheRow, now time.Time) error {
	if incoming.Market.Status == StatusResolved {
		return violation("optimistic write", "only the ledger can mark a market resolved")
	}
	if base != nil && base.Market.Status == StatusResolved {
		return violation("optimistic write", "market is already resolved")
	}
	if base != nil && !incoming.UpdatedAt.After(base.UpdatedAt) {
		return violation("optimistic write", "ledger snapshot is newer")
	}
	if overlay != nil && !overlay.Expired(now) && overlay.UpdatedAt.After(incoming.UpdatedAt) {
		return violation("optimistic write", "a newer optimistic write exists")
	}
	return nil
}

// EffectiveRow resuelve lo que ven los lectores: un overlay vigente y más
// nuevo que la fila autoritativa gana; si no, la autoritativa.
func EffectiveRow(base, overlay *CacheRow, now time.Time) (CacheRow, bool) {
	if overlay != nil && !overlay.Expired(now) {
		if base == nil || (base.Market.Status != StatusResolved && overlay.UpdatedAt.After(base.UpdatedAt)) {
			return *overlay, true
		}
	}
	if base != nil {
		return *base, true
	}
	return CacheRow{}, false
}

// CacheFilter acota una consulta. Los zero values aceptan todo.
type CacheFilter struct {
	Statuses []Status
	Category Category
	Creator  string
	Limit    int
}

// Matches indica si m pasa el filtro.
func (f CacheFilter) Matches(m Market) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if m.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.Creator != "" && m.Creator != f.Creator {
		return false
	}
	return true
}
