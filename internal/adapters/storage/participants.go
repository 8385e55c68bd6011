package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// SaveParticipants añade el historial de participantes. Las filas ya
// conocidas se ignoran, así que re-guardar el mismo historial es un no-op.
func (s *SQLiteStore) SaveParticipants(ctx context.Context, network domain.Network, participants []domain.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveParticipants: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO participants
			(network, market_address, participant_address, action, answer,
			 bond_amount, escalation_level, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveParticipants: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range participants {
		if _, err := stmt.ExecContext(ctx,
			string(network), p.MarketAddress, p.ParticipantAddress, string(p.Action),
			boolInt(p.Answer), p.BondAmount, p.EscalationLevel, unixNano(p.Timestamp),
		); err != nil {
			return fmt.Errorf("storage.SaveParticipants: insert %s: %w", p.ParticipantAddress, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveParticipants: commit: %w", err)
	}
	return nil
}

// Participants devuelve el historial del mercado en orden causal (timestamp asc).
func (s *SQLiteStore) Participants(ctx context.Context, network domain.Network, marketAddress string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_address, action, answer, bond_amount, escalation_level, ts
		FROM participants
		WHERE network = ? AND market_address = ?
		ORDER BY ts ASC
	`, string(network), marketAddress)
	if err != nil {
		return nil, fmt.Errorf("storage.Participants: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			p      domain.Participant
			action string
			answer int
			ts     int64
		)
		if err := rows.Scan(&p.ParticipantAddress, &action, &answer, &p.BondAmount, &p.EscalationLevel, &ts); err != nil {
			return nil, fmt.Errorf("storage.Participants: scan row: %w", err)
		}
		p.MarketAddress = marketAddress
		p.Action = domain.Action(action)
		p.Answer = answer == 1
		p.Timestamp = fromUnixNano(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
