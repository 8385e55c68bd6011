package domain

import "time"

// Registros devueltos por los get-methods del ledger, ya decodificados.

// MarketIdentity es el registro de creación de la factory para un índice.
type MarketIdentity struct {
	Address   string
	CreatedAt time.Time
	Creator   string
}

// Códigos de estado tal como los guarda el contrato del mercado.
const (
	LedgerStateOpen       = 0
	LedgerStateProposed   = 1
	LedgerStateChallenged = 2
	LedgerStateVoting     = 3
	LedgerStateResolved   = 4
)

// LifecycleState es la vista cruda del ciclo de vida en el contrato.
type LifecycleState struct {
	State              int
	EscalationCount    int
	TotalBonds         int64
	ResolutionDeadline time.Time
}

// QuestionText es el contenido legible de un mercado.
type QuestionText struct {
	Question         string
	Rules            string
	ResolutionSource string
}

// Proposal es la propuesta vigente de un mercado en disputa.
type Proposal struct {
	Answer            bool
	Bond              int64
	ProposedAt        time.Time
	ChallengeDeadline time.Time
}

// VetoStatus es el recuento y el deadline del veto guard.
type VetoStatus struct {
	VetoEnd       time.Time
	CurrentAnswer bool
	VetoCount     int64
	SupportCount  int64
}

// Payout es un creator rebate o un resolver reward.
type Payout struct {
	Account string
	Amount  int64
	Claimed bool
}

// Stake es el saldo en staking de una cuenta y cuándo se bloqueó por última vez.
type Stake struct {
	Amount   int64
	LockedAt time.Time
}

// StatusFromLedger traduce un código de estado del contrato a Status.
func StatusFromLedger(code int) (Status, bool) {
	switch code {
	case LedgerStateOpen:
		return StatusOpen, true
	case LedgerStateProposed:
		return StatusProposed, true
	case LedgerStateChallenged:
		return StatusChallenged, true
	case LedgerStateVoting:
		return StatusVoting, true
	case LedgerStateResolved:
		return StatusResolved, true
	}
	return "", false
}

// MarketDetail agrupa todo lo que el reconciler leyó de un mercado.
// Las partes opcionales son nil cuando el status no las requiere.
type MarketDetail struct {
	Identity       MarketIdentity
	Lifecycle      LifecycleState
	Question       QuestionText
	Proposal       *Proposal
	VetoGuard      string
	Veto           *VetoStatus
	CreatorRebate  *Payout
	ResolverReward *Payout
}
