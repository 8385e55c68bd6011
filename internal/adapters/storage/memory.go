package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

var (
	_ ports.CacheStore       = (*MemoryStore)(nil)
	_ ports.ParticipantStore = (*MemoryStore)(nil)
	_ ports.VoteMarkerStore  = (*MemoryStore)(nil)
)

type marketKey struct {
	network domain.Network
	id      int64
}

type voteKey struct {
	network domain.Network
	market  string
	voter   string
}

type participantKey struct {
	participant string
	action      domain.Action
	ts          int64
}

// MemoryStore es la versión en memoria del store, usada con -dry-run y en tests.
// Sigue las mismas reglas de merge que SQLiteStore.
type MemoryStore struct {
	opts Options

	mu           sync.Mutex
	markets      map[marketKey]domain.CacheRow
	overlays     map[marketKey]domain.CacheRow
	participants map[string][]domain.Participant // network|market → historial
	seen         map[string]map[participantKey]bool
	votes        map[voteKey]domain.VoteChoice
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:         opts.withDefaults(),
		markets:      make(map[marketKey]domain.CacheRow),
		overlays:     make(map[marketKey]domain.CacheRow),
		participants: make(map[string][]domain.Participant),
		seen:         make(map[string]map[participantKey]bool),
		votes:        make(map[voteKey]domain.VoteChoice),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, row domain.CacheRow) error {
	row.Source = domain.SourceLedger
	row.ExpiresAt = nil
	key := marketKey{row.Market.Network, row.Market.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *domain.CacheRow
	if r, ok := s.markets[key]; ok {
		existing = &r
	}
	if !domain.AcceptAuthoritative(existing, row) {
		return nil
	}
	s.markets[key] = row

	if o, ok := s.overlays[key]; ok {
		if row.Market.Status == domain.StatusResolved || !o.UpdatedAt.After(row.UpdatedAt) {
			delete(s.overlays, key)
		}
	}
	return nil
}

func (s *MemoryStore) UpsertOptimistic(_ context.Context, row domain.CacheRow) error {
	now := s.opts.Now()
	row = prepareOptimistic(row, s.opts.OptimisticTTL)
	key := marketKey{row.Market.Network, row.Market.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	base, overlay := s.lookup(key)
	if err := domain.AcceptOptimistic(base, overlay, row, now); err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: market %d: %w", row.Market.ID, err)
	}
	s.overlays[key] = row
	return nil
}

func (s *MemoryStore) Get(_ context.Context, network domain.Network, id int64) (domain.CacheRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, overlay := s.lookup(marketKey{network, id})
	row, ok := domain.EffectiveRow(base, overlay, s.opts.Now())
	if !ok {
		return domain.CacheRow{}, fmt.Errorf("storage.Get: market %s/%d: %w", network, id, domain.ErrNotFound)
	}
	return row, nil
}

func (s *MemoryStore) Query(_ context.Context, network domain.Network, filter domain.CacheFilter) ([]domain.CacheRow, error) {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	bases := make(map[int64]domain.CacheRow)
	overlays := make(map[int64]domain.CacheRow)
	for k, r := range s.markets {
		if k.network == network {
			bases[k.id] = r
		}
	}
	for k, r := range s.overlays {
		if r.Expired(now) {
			delete(s.overlays, k)
			continue
		}
		if k.network == network {
			overlays[k.id] = r
		}
	}
	return mergeRows(bases, overlays, filter, now), nil
}

func (s *MemoryStore) Stale(_ context.Context, network domain.Network, olderThan time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for k, r := range s.markets {
		if k.network == network && r.CachedAt.Before(olderThan) {
			ids = append(ids, k.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveParticipants(_ context.Context, network domain.Network, participants []domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range participants {
		hk := string(network) + "|" + p.MarketAddress
		if s.seen[hk] == nil {
			s.seen[hk] = make(map[participantKey]bool)
		}
		pk := participantKey{p.ParticipantAddress, p.Action, p.Timestamp.UnixNano()}
		if s.seen[hk][pk] {
			continue
		}
		s.seen[hk][pk] = true
		s.participants[hk] = append(s.participants[hk], p)
	}
	return nil
}

func (s *MemoryStore) Participants(_ context.Context, network domain.Network, marketAddress string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]domain.Participant(nil), s.participants[string(network)+"|"+marketAddress]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) HasVoted(_ context.Context, network domain.Network, marketAddress, voter string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.votes[voteKey{network, marketAddress, voter}]
	return ok, nil
}

func (s *MemoryStore) MarkVoted(_ context.Context, network domain.Network, marketAddress, voter string, choice domain.VoteChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey{network, marketAddress, voter}
	if _, ok := s.votes[key]; !ok {
		s.votes[key] = choice
	}
	return nil
}

// lookup devuelve punteros a copias de las filas guardadas (nil si no hay).
func (s *MemoryStore) lookup(key marketKey) (base, overlay *domain.CacheRow) {
	if r, ok := s.markets[key]; ok {
		base = &r
	}
	if r, ok := s.overlays[key]; ok {
		overlay = &r
	}
	return base, overlay
}
