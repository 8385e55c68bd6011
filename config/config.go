package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// Config es la configuración completa del cliente.
type Config struct {
	NetworkName string                  `yaml:"network"` // mainnet | testnet
	Networks    map[string]NetworkEntry `yaml:"networks"`
	API         APIConfig               `yaml:"api"`
	Reconciler  ReconcilerConfig        `yaml:"reconciler"`
	Cache       CacheConfig             `yaml:"cache"`
	Votes       VotesConfig             `yaml:"votes"`
	Protocol    ProtocolConfig          `yaml:"protocol"`
	Log         LogConfig               `yaml:"log"`
}

// NetworkEntry contiene las direcciones de los contratos de un despliegue.
type NetworkEntry struct {
	APIBase           string `yaml:"api_base"`
	FactoryAddress    string `yaml:"factory_address"`
	VetoMasterAddress string `yaml:"veto_master_address"`
	StakingAddress    string `yaml:"staking_address"`
}

// APIConfig contiene la credencial opcional del gateway.
type APIConfig struct {
	Key string `yaml:"key"` // vacío = perfil público
}

// ReconcilerConfig controla el ritmo de las pasadas contra el ledger.
type ReconcilerConfig struct {
	IntervalSeconds    int          `yaml:"interval_seconds"`
	Public             BatchProfile `yaml:"public"`
	Keyed              BatchProfile `yaml:"keyed"`
	Retry              RetryConfig  `yaml:"retry"`
	CallTimeoutSeconds int          `yaml:"call_timeout_seconds"`
	ProgressResetMS    int          `yaml:"progress_reset_ms"`
}

// BatchProfile es el tamaño de lote y la pausa entre lotes.
type BatchProfile struct {
	Size    int `yaml:"size"`
	DelayMS int `yaml:"delay_ms"`
}

// RetryConfig es el backoff exponencial de las lecturas.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// CacheConfig controla dónde se persiste la réplica local.
type CacheConfig struct {
	DSN                  string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	OptimisticTTLSeconds int    `yaml:"optimistic_ttl_seconds"`
}

// VotesConfig elige dónde se guardan los marcadores de voto.
type VotesConfig struct {
	Backend string      `yaml:"backend"` // sqlite | redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig es la conexión del backend redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLHours  int    `yaml:"ttl_hours"` // 0 = sin expiración
}

// ProtocolConfig sobreescribe constantes del protocolo en despliegues de
// prueba. Los zero values conservan el valor de DefaultProtocol.
type ProtocolConfig struct {
	MinimumBond            int64 `yaml:"minimum_bond"`
	WinnerBonus            int64 `yaml:"winner_bonus"`
	CreationFee            int64 `yaml:"creation_fee"`
	ProposalGraceSeconds   int   `yaml:"proposal_grace_seconds"`
	ChallengePeriodSeconds int   `yaml:"challenge_period_seconds"`
	VotePeriodSeconds      int   `yaml:"vote_period_seconds"`
	MaxEscalation          int   `yaml:"max_escalation"`
	VetoThresholdBps       int64 `yaml:"veto_threshold_bps"`
	StakeLockSeconds       int   `yaml:"stake_lock_seconds"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate rechaza configuraciones que ningún componente puede usar.
func (c *Config) Validate() error {
	n := domain.Network(c.NetworkName)
	if !n.Valid() {
		return fmt.Errorf("unknown network %q (want one of %v)", c.NetworkName, domain.Networks)
	}
	entry, ok := c.Networks[c.NetworkName]
	if !ok {
		return fmt.Errorf("network %q has no networks.%s section", c.NetworkName, c.NetworkName)
	}
	if entry.FactoryAddress == "" {
		return fmt.Errorf("networks.%s.factory_address is required", c.NetworkName)
	}
	switch c.Votes.Backend {
	case "sqlite":
	case "redis":
		if c.Votes.Redis.Addr == "" {
			return fmt.Errorf("votes.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown votes backend %q", c.Votes.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// Network devuelve la configuración del despliegue seleccionado.
func (c *Config) Network() domain.NetworkConfig {
	entry := c.Networks[c.NetworkName]
	return domain.NetworkConfig{
		Network:           domain.Network(c.NetworkName),
		APIBase:           entry.APIBase,
		APIKey:            c.API.Key,
		FactoryAddress:    entry.FactoryAddress,
		VetoMasterAddress: entry.VetoMasterAddress,
		StakingAddress:    entry.StakingAddress,
	}
}

// ProtocolValues aplica los overrides sobre DefaultProtocol.
func (c *Config) ProtocolValues() domain.Protocol {
	p := domain.DefaultProtocol()
	o := c.Protocol
	if o.MinimumBond > 0 {
		p.MinimumBond = o.MinimumBond
	}
	if o.WinnerBonus > 0 {
		p.WinnerBonus = o.WinnerBonus
	}
	if o.CreationFee > 0 {
		p.CreationFee = o.CreationFee
	}
	if o.ProposalGraceSeconds > 0 {
		p.ProposalGrace = seconds(o.ProposalGraceSeconds)
	}
	if o.ChallengePeriodSeconds > 0 {
		p.ChallengePeriod = seconds(o.ChallengePeriodSeconds)
	}
	if o.VotePeriodSeconds > 0 {
		p.VotePeriod = seconds(o.VotePeriodSeconds)
	}
	if o.MaxEscalation > 0 {
		p.MaxEscalation = o.MaxEscalation
	}
	if o.VetoThresholdBps > 0 {
		p.VetoThresholdBps = o.VetoThresholdBps
	}
	if o.StakeLockSeconds > 0 {
		p.StakeLockPeriod = seconds(o.StakeLockSeconds)
	}
	return p
}

// ReconcileInterval devuelve el intervalo entre pasadas como time.Duration.
func (c *Config) ReconcileInterval() time.Duration {
	return seconds(c.Reconciler.IntervalSeconds)
}

// CallTimeout es el límite de cada lectura individual al gateway.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.Reconciler.CallTimeoutSeconds)
}

// ProgressReset es la pausa antes de volver el progreso a idle.
func (c *Config) ProgressReset() time.Duration {
	return millis(c.Reconciler.ProgressResetMS)
}

// OptimisticTTL es la vida de una escritura optimista sin confirmar.
func (c *Config) OptimisticTTL() time.Duration {
	return seconds(c.Cache.OptimisticTTLSeconds)
}

// VoteMarkerTTL es la expiración de los marcadores en redis.
func (c *Config) VoteMarkerTTL() time.Duration {
	return time.Duration(c.Votes.Redis.TTLHours) * time.Hour
}

// Delay devuelve la pausa entre lotes.
func (b BatchProfile) Delay() time.Duration {
	return millis(b.DelayMS)
}

// BaseDelay y MaxDelay devuelven el backoff como time.Duration.
func (r RetryConfig) BaseDelay() time.Duration { return millis(r.BaseDelayMS) }

func (r RetryConfig) MaxDelay() time.Duration { return millis(r.MaxDelayMS) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORACLE_NETWORK"); v != "" {
		cfg.NetworkName = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("ORACLE_CACHE_DSN"); v != "" {
		cfg.Cache.DSN = v
	}
	if v := os.Getenv("ORACLE_REDIS_ADDR"); v != "" {
		cfg.Votes.Redis.Addr = v
		if cfg.Votes.Backend == "" {
			cfg.Votes.Backend = "redis"
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// defaultAPIBase es el gateway público de cada red.
var defaultAPIBase = map[string]string{
	string(domain.NetworkMainnet): "https://toncenter.com/api/v2",
	string(domain.NetworkTestnet): "https://testnet.toncenter.com/api/v2",
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.NetworkName == "" {
		cfg.NetworkName = string(domain.NetworkMainnet)
	}
	for name, entry := range cfg.Networks {
		if entry.APIBase == "" {
			entry.APIBase = defaultAPIBase[name]
			cfg.Networks[name] = entry
		}
	}

	r := &cfg.Reconciler
	if r.IntervalSeconds <= 0 {
		r.IntervalSeconds = 60
	}
	if r.Public.Size <= 0 {
		r.Public.Size = 3
	}
	if r.Public.DelayMS <= 0 {
		r.Public.DelayMS = 1500
	}
	if r.Keyed.Size <= 0 {
		r.Keyed.Size = 10
	}
	if r.Keyed.DelayMS <= 0 {
		r.Keyed.DelayMS = 200
	}
	if r.Retry.MaxAttempts <= 0 {
		r.Retry.MaxAttempts = 4
	}
	if r.Retry.BaseDelayMS <= 0 {
		r.Retry.BaseDelayMS = 500
	}
	if r.Retry.MaxDelayMS <= 0 {
		r.Retry.MaxDelayMS = 8000
	}
	if r.CallTimeoutSeconds <= 0 {
		r.CallTimeoutSeconds = 15
	}
	if r.ProgressResetMS <= 0 {
		r.ProgressResetMS = 2000
	}

	if cfg.Cache.DSN == "" {
		cfg.Cache.DSN = "oraclesync.db"
	}
	if cfg.Cache.OptimisticTTLSeconds <= 0 {
		cfg.Cache.OptimisticTTLSeconds = 120
	}
	if cfg.Votes.Backend == "" {
		cfg.Votes.Backend = "sqlite"
	}
	if cfg.Votes.Redis.KeyPrefix == "" {
		cfg.Votes.Redis.KeyPrefix = "oraclesync"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
