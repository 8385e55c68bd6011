package toncenter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// stackReader consume un stack de respuesta en orden. El primer error de
// decodificación se guarda y las lecturas siguientes devuelven zero values,
// así cada mapper comprueba err una sola vez al final.
type stackReader struct {
	method  string
	entries []stackEntry
	pos     int
	err     error
}

func newStackReader(method string, entries []stackEntry) *stackReader {
	return &stackReader{method: method, entries: entries}
}

func (r *stackReader) next(types ...string) (stackEntry, bool) {
	if r.err != nil {
		return stackEntry{}, false
	}
	if r.pos >= len(r.entries) {
		r.fail("stack too short: want index %d, have %d", r.pos, len(r.entries))
		return stackEntry{}, false
	}
	e := r.entries[r.pos]
	r.pos++
	for _, t := range types {
		if e.Type == t {
			return e, true
		}
	}
	r.fail("entry %d: unexpected type %q (want %s)", r.pos-1, e.Type, strings.Join(types, "|"))
	return stackEntry{}, false
}

func (r *stackReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %s", domain.ErrMalformedReply, r.method, fmt.Sprintf(format, args...))
	}
}

func (r *stackReader) num() int64 {
	e, ok := r.next(stackNum)
	if !ok {
		return 0
	}
	n, err := parseNum(e.Value)
	if err != nil {
		r.fail("entry %d: %v", r.pos-1, err)
		return 0
	}
	return n
}

// flag sigue la convención TVM: 0 es false, cualquier otro valor (normalmente -1) es true.
func (r *stackReader) flag() bool {
	return r.num() != 0
}

// unix interpreta unix seconds; 0 se mapea al zero time.
func (r *stackReader) unix() time.Time {
	sec := r.num()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// address acepta null como "sin dirección".
func (r *stackReader) address() string {
	e, ok := r.next(stackAddress, stackNull)
	if !ok || e.Type == stackNull {
		return ""
	}
	return r.text(e)
}

// str acepta null como texto vacío.
func (r *stackReader) str() string {
	e, ok := r.next(stackString, stackNull)
	if !ok || e.Type == stackNull {
		return ""
	}
	return r.text(e)
}

func (r *stackReader) text(e stackEntry) string {
	var s string
	if err := json.Unmarshal(e.Value, &s); err != nil {
		r.fail("entry %d: %v", r.pos-1, err)
		return ""
	}
	return s
}

// tuple devuelve un reader sobre los elementos de una tupla. Los errores del
// reader hijo se propagan con done().
func (r *stackReader) tuple() *stackReader {
	e, ok := r.next(stackTuple)
	if !ok {
		return newStackReader(r.method, nil)
	}
	var items []stackEntry
	if err := json.Unmarshal(e.Value, &items); err != nil {
		r.fail("entry %d: %v", r.pos-1, err)
	}
	return newStackReader(r.method, items)
}

func (r *stackReader) remaining() int {
	return len(r.entries) - r.pos
}

// done absorbe el error de un reader hijo.
func (r *stackReader) done(child *stackReader) {
	if child.err != nil && r.err == nil {
		r.err = child.err
	}
}

// parseNum acepta "0x..." hex, decimal como string o número JSON.
func parseNum(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("num value %s", string(raw))
		}
		s = n.String()
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("num value %q: %w", s, err)
	}
	return n, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func mapIdentity(r *stackReader) (domain.MarketIdentity, error) {
	id := domain.MarketIdentity{
		Address:   r.address(),
		CreatedAt: r.unix(),
		Creator:   r.address(),
	}
	if r.err == nil && id.Address == "" {
		return id, fmt.Errorf("%w: %s: empty market address", domain.ErrNotAvailable, r.method)
	}
	return id, r.err
}

func mapLifecycle(r *stackReader) (domain.LifecycleState, error) {
	return domain.LifecycleState{
		State:              int(r.num()),
		EscalationCount:    int(r.num()),
		TotalBonds:         r.num(),
		ResolutionDeadline: r.unix(),
	}, r.err
}

func mapQuestion(r *stackReader) (domain.QuestionText, error) {
	return domain.QuestionText{
		Question:         r.str(),
		Rules:            r.str(),
		ResolutionSource: r.str(),
	}, r.err
}

func mapProposal(r *stackReader) (domain.Proposal, error) {
	p := domain.Proposal{
		Answer:            r.flag(),
		Bond:              r.num(),
		ProposedAt:        r.unix(),
		ChallengeDeadline: r.unix(),
	}
	if r.err == nil && p.ProposedAt.IsZero() {
		return p, fmt.Errorf("%w: %s: no proposal recorded", domain.ErrNotAvailable, r.method)
	}
	return p, r.err
}

func mapVetoStatus(r *stackReader) (domain.VetoStatus, error) {
	return domain.VetoStatus{
		VetoEnd:       r.unix(),
		CurrentAnswer: r.flag(),
		VetoCount:     r.num(),
		SupportCount:  r.num(),
	}, r.err
}

func mapPayout(r *stackReader) (domain.Payout, error) {
	return domain.Payout{
		Account: r.address(),
		Amount:  r.num(),
		Claimed: r.flag(),
	}, r.err
}

func mapStake(r *stackReader) (domain.Stake, error) {
	return domain.Stake{
		Amount:   r.num(),
		LockedAt: r.unix(),
	}, r.err
}

// Códigos de acción en el historial de participantes.
const (
	participantPropose   = 0
	participantChallenge = 1
)

// mapParticipants lee una tupla de tuplas
// (participant, action, answer, bond, level, timestamp).
func mapParticipants(r *stackReader, market string) ([]domain.Participant, error) {
	list := r.tuple()
	out := make([]domain.Participant, 0, list.remaining())
	for list.remaining() > 0 && list.err == nil {
		item := list.tuple()
		p := domain.Participant{
			MarketAddress:      market,
			ParticipantAddress: item.address(),
		}
		switch code := item.num(); code {
		case participantPropose:
			p.Action = domain.ActionPropose
		case participantChallenge:
			p.Action = domain.ActionChallenge
		default:
			item.fail("unknown participant action %d", code)
		}
		p.Answer = item.flag()
		p.BondAmount = item.num()
		p.EscalationLevel = int(item.num())
		p.Timestamp = item.unix()
		list.done(item)
		if list.err == nil {
			out = append(out, p)
		}
	}
	r.done(list)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}
