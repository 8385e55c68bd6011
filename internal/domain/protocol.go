package domain

import "time"

// Network es uno de los despliegues que el cliente puede seguir.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Networks es el conjunto cerrado de redes soportadas.
var Networks = []Network{NetworkMainnet, NetworkTestnet}

// Valid indica si n es una red soportada.
func (n Network) Valid() bool {
	for _, known := range Networks {
		if n == known {
			return true
		}
	}
	return false
}

// NetworkConfig lleva las direcciones de contratos de un despliegue. Se
// construye al arrancar y se pasa a cada componente que habla con el ledger.
type NetworkConfig struct {
	Network           Network
	APIBase           string
	APIKey            string // credencial de acceso elevado; vacío = perfil público
	FactoryAddress    string
	VetoMasterAddress string
	StakingAddress    string
}

// HasAPIKey indica si aplica el perfil con API key.
func (c NetworkConfig) HasAPIKey() bool {
	return c.APIKey != ""
}

// Protocol agrupa las constantes económicas y de tiempos de los contratos
// del oráculo. Los importes van en unidades base del token.
type Protocol struct {
	MinimumBond      int64
	WinnerBonus      int64
	CreationFee      int64
	ProposalGrace    time.Duration // espera tras resolutionDeadline antes de aceptar propuestas
	ChallengePeriod  time.Duration
	VotePeriod       time.Duration
	MaxEscalation    int
	VetoThresholdBps int64 // parte del supply total necesaria para votar, en bps
	StakeLockPeriod  time.Duration
}

// DefaultProtocol devuelve los valores desplegados en mainnet.
func DefaultProtocol() Protocol {
	return Protocol{
		MinimumBond:      10_000,
		WinnerBonus:      2_000,
		CreationFee:      100_000,
		ProposalGrace:    time.Hour,
		ChallengePeriod:  4 * time.Hour,
		VotePeriod:       48 * time.Hour,
		MaxEscalation:    3,
		VetoThresholdBps: 100,
		StakeLockPeriod:  24 * time.Hour,
	}
}

// ChallengePeriodAt devuelve la ventana de challenge de un nivel de
// escalado. Hoy todos los niveles usan la misma.
func (p Protocol) ChallengePeriodAt(level int) time.Duration {
	return p.ChallengePeriod
}
