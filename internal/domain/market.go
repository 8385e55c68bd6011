package domain

import "time"

// Status es la etapa del ciclo de disputa de un mercado.
type Status string

const (
	StatusOpen       Status = "open"
	StatusProposed   Status = "proposed"
	StatusChallenged Status = "challenged"
	StatusVoting     Status = "voting"
	StatusResolved   Status = "resolved"
)

// rank ordena los status a lo largo del ciclo (solo hacia delante).
func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusProposed:
		return 1
	case StatusChallenged:
		return 2
	case StatusVoting:
		return 3
	case StatusResolved:
		return 4
	}
	return -1
}

// Valid indica si s es un status conocido.
func (s Status) Valid() bool { return s.rank() >= 0 }

// Disputed es true mientras hay una propuesta con bond vigente.
func (s Status) Disputed() bool {
	return s == StatusProposed || s == StatusChallenged
}

// Market es una pregunta YES/NO y su ciclo de disputa.
type Market struct {
	ID      int64
	Address string
	Network Network
	Creator string

	Question         string
	Rules            string
	ResolutionSource string
	Category         Category

	ResolutionDeadline time.Time
	ProposalStartTime  time.Time
	CreatedAt          time.Time

	Status            Status
	ProposedOutcome   *bool
	CurrentBond       int64
	EscalationCount   int
	TotalBonds        int64
	ProposedAt        *time.Time
	ChallengeDeadline *time.Time

	CurrentAnswer *bool
	Veto          *VetoState
	Settlement    *Settlement
}

// VetoState existe desde que el mercado llega a voting.
type VetoState struct {
	GuardAddress string
	End          time.Time
	VetoCount    int64
	SupportCount int64
}

// Tally devuelve el recuento actual.
func (v VetoState) Tally() Tally {
	return Tally{Vetoes: v.VetoCount, Supports: v.SupportCount}
}

// Settlement contiene los pagos reclamables de un mercado resuelto.
type Settlement struct {
	RebateCreator   string
	RebateAmount    int64
	RebateClaimed   bool
	ResolverAddress string
	ResolverReward  int64
	ResolverClaimed bool
}

// Action es el tipo de afirmación con bond que hizo un participante.
type Action string

const (
	ActionPropose   Action = "propose"
	ActionChallenge Action = "challenge"
)

// Participant es una acción con bond sobre un mercado. El orden por
// Timestamp es el orden causal.
type Participant struct {
	MarketAddress      string
	ParticipantAddress string
	Action             Action
	Answer             bool
	BondAmount         int64
	EscalationLevel    int // MaxEscalation+1 = challenge que pasó a votación
	Timestamp          time.Time
}

// AnswerLabel muestra un resultado booleano como lo lee el usuario.
func AnswerLabel(answer bool) string {
	if answer {
		return "YES"
	}
	return "NO"
}

// TruncateQuestion recorta q a maxLen runas; si está vacía usa la dirección.
func TruncateQuestion(q, address string, maxLen int) string {
	if q == "" {
		q = address
	}
	r := []rune(q)
	if len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return q
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
