package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// HasVoted indica si voter ya votó en la disputa del mercado.
func (s *SQLiteStore) HasVoted(ctx context.Context, network domain.Network, marketAddress, voter string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vote_markers WHERE network = ? AND market_address = ? AND voter = ?`,
		string(network), marketAddress, voter,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.HasVoted: %w", err)
	}
	return n > 0, nil
}

// MarkVoted registra el voto. El primer voto gana; un segundo MarkVoted no
// cambia la elección guardada.
func (s *SQLiteStore) MarkVoted(ctx context.Context, network domain.Network, marketAddress, voter string, choice domain.VoteChoice) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_markers (network, market_address, voter, choice, voted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, string(network), marketAddress, voter, string(choice), s.opts.Now().UnixNano()); err != nil {
		return fmt.Errorf("storage.MarkVoted: %w", err)
	}
	return nil
}
