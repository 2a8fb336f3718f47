package audit

import (
	"time"

	"github.com/satishbabariya/audit-go/audit/cache"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/storage"
	"github.com/satishbabariya/audit-go/value"
	"go.uber.org/zap"
)

// AggregateRef declares one additional aggregate root an entity belongs
// to.
type AggregateRef struct {
	Category string
	Type     string
	Resolve  func(entity value.Value, client dbclient.Client) (value.Value, error) // nil id Value -> no ResolvedId appended
}

// IDResolver extracts the self id from a record.
type IDResolver func(entity value.Value) (value.Value, error)

// ByField is the common IDResolver: read a named scalar field.
func ByField(field string) IDResolver {
	return func(entity value.Value) (value.Value, error) {
		v, ok := entity.Get(field)
		if !ok {
			return value.Null(), nil
		}
		return v, nil
	}
}

// ForeignKeyAggregate builds the common AggregateRef shape for a simple
// foreign-key-to-parent relation ("to('User', foreignKey('authorId'))"):
// read the named FK field off the entity and, if set, fetch the related
// row by id so downstream enrichment has it, normalizing the FK value
// itself as the resolved id.
func ForeignKeyAggregate(category, relatedType, fkField string) AggregateRef {
	return AggregateRef{
		Category: category,
		Type:     relatedType,
		Resolve: func(entity value.Value, client dbclient.Client) (value.Value, error) {
			fk, ok := entity.Get(fkField)
			if !ok || fk.IsNull() {
				return value.Null(), nil
			}
			return fk, nil
		},
	}
}

// EntityConfig is the declarative per-model registration.
type EntityConfig struct {
	Type          string
	Category      string // default "model"
	IDResolver    IDResolver
	Aggregates    []AggregateRef
	ExcludeSelf   bool
	ExcludeFields map[string]struct{}

	EntityContextEnricher func(entities []value.Value, client dbclient.Client) ([]value.Value, error)
	EnricherErrorPolicy   Strategy
	EnricherFallback      value.Value
}

// AggregateMapping is model name → EntityConfig.
type AggregateMapping map[string]EntityConfig

// ActorEnricherConfig is the global actor enricher (contextEnricher.actor).
type ActorEnricherConfig struct {
	Enricher func(actor value.Value, client dbclient.Client) (value.Value, error)
	OnError  Strategy
	Fallback value.Value
}

// AggregateContextEnricher enriches a batch of distinct aggregate roots of
// one type.
type AggregateContextEnricher func(roots []value.Value, client dbclient.Client) ([]value.Value, error)

// Performance groups the engine's performance.* options.
type Performance struct {
	AwaitWrite       bool
	Sampling         float64 // [0,1], 1 = always keep
	AsyncQueueSize   int     // 0 = unbounded
	MaxEmitRetries   int
}

// Config is the engine's configuration object, built via functional
// options, grounded on v3/runtime/client.go's
// ClientConfig/Option/DefaultConfig idiom.
type Config struct {
	BasePrisma dbclient.Client // non-transactional client used by enrichers
	Writer     storage.Writer

	AggregateMapping AggregateMapping

	GlobalExcludeFields map[string]struct{}
	RedactFields        map[string]struct{}
	RedactTransform     func(field string, v value.Value) bool

	Performance Performance

	ExcludeModels map[string]struct{}

	FetchBeforeOnUpdate bool
	FetchBeforeOnDelete bool

	ActorEnricher  *ActorEnricherConfig
	AggregateCtx   map[string]AggregateContextEnricher // keyed by aggregate Type

	// AggregateContextCache, when set, short-circuits an aggregate root's
	// context enricher on a cache hit instead of invoking it again for
	// the same (type, id) on a later call. Nil disables caching.
	AggregateContextCache *cache.LRUCache
	AggregateContextTTL   time.Duration

	ErrorPolicy ErrorPolicy
	Logger      *zap.SugaredLogger
	Hooks       *Hooks
}

// Option mutates a Config during construction, the same shape as
// v3/runtime/client.go's Option func(*ClientConfig).
type Option func(*Config)

// DefaultConfig mirrors v3/runtime/client.go's DefaultConfig(): sane,
// conservative defaults (awaitWrite=true, sampling=1).
func DefaultConfig() Config {
	logger, _ := zap.NewProduction()
	return Config{
		AggregateMapping:    AggregateMapping{},
		GlobalExcludeFields: map[string]struct{}{},
		RedactFields:        map[string]struct{}{},
		Performance: Performance{
			AwaitWrite:     true,
			Sampling:       1,
			MaxEmitRetries: 3,
		},
		ExcludeModels:       map[string]struct{}{},
		FetchBeforeOnUpdate: true,
		FetchBeforeOnDelete: true,
		AggregateCtx:        map[string]AggregateContextEnricher{},
		ErrorPolicy:         DefaultErrorPolicy(),
		Logger:              logger.Sugar(),
		Hooks:               NewHooks(),
	}
}

func WithBasePrisma(c dbclient.Client) Option {
	return func(cfg *Config) { cfg.BasePrisma = c }
}

func WithWriter(w storage.Writer) Option {
	return func(cfg *Config) { cfg.Writer = w }
}

func WithAggregateMapping(m AggregateMapping) Option {
	return func(cfg *Config) { cfg.AggregateMapping = m }
}

func WithGlobalExcludeFields(fields ...string) Option {
	return func(cfg *Config) {
		for _, f := range fields {
			cfg.GlobalExcludeFields[f] = struct{}{}
		}
	}
}

func WithRedactFields(fields ...string) Option {
	return func(cfg *Config) {
		for _, f := range fields {
			cfg.RedactFields[f] = struct{}{}
		}
	}
}

func WithAwaitWrite(await bool) Option {
	return func(cfg *Config) { cfg.Performance.AwaitWrite = await }
}

func WithSampling(rate float64) Option {
	return func(cfg *Config) { cfg.Performance.Sampling = rate }
}

func WithExcludeModels(models ...string) Option {
	return func(cfg *Config) {
		for _, m := range models {
			cfg.ExcludeModels[m] = struct{}{}
		}
	}
}

func WithActorEnricher(a ActorEnricherConfig) Option {
	return func(cfg *Config) { cfg.ActorEnricher = &a }
}

func WithAggregateContextEnricher(aggregateType string, fn AggregateContextEnricher) Option {
	return func(cfg *Config) { cfg.AggregateCtx[aggregateType] = fn }
}

// WithAggregateContextCache caches aggregate context enrichment results
// across calls, keyed by (aggregate type, id), bounded to maxSize entries
// each living ttl.
func WithAggregateContextCache(maxSize int, ttl time.Duration) Option {
	return func(cfg *Config) {
		cfg.AggregateContextCache = cache.NewLRUCache(maxSize, ttl)
		cfg.AggregateContextTTL = ttl
	}
}

func WithErrorPolicy(p ErrorPolicy) Option {
	return func(cfg *Config) { cfg.ErrorPolicy = p }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(cfg *Config) { cfg.Logger = l }
}

func WithHooks(h *Hooks) Option {
	return func(cfg *Config) { cfg.Hooks = h }
}

// NewConfig applies opts over DefaultConfig and validates the result,
// returning a *AuditError{Phase: PhaseConfiguration} synchronously on any
// invalid EntityConfig (missing Type, or missing IDResolver on an entity
// that does not set ExcludeSelf).
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	for model, ec := range cfg.AggregateMapping {
		if ec.Type == "" {
			return cfg, NewAuditError(PhaseConfiguration, model, "register", nil, errMissingType)
		}
		if ec.IDResolver == nil && !ec.ExcludeSelf {
			return cfg, NewAuditError(PhaseConfiguration, model, "register", nil, errMissingIDResolver)
		}
		if ec.Category == "" {
			ec.Category = "model"
			cfg.AggregateMapping[model] = ec
		}
	}
	return cfg, nil
}

var (
	errMissingType       = configError("entity config missing Type")
	errMissingIDResolver = configError("entity config missing IDResolver")
)

type configError string

func (e configError) Error() string { return string(e) }
