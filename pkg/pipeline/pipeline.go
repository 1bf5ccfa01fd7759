// Package pipeline assembles the full safety stack: rule catalog, rule
// engine, validator, crisis intervention manager, escalation service,
// emergency protocols, audit trail and telemetry, behind a single facade.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/havenmind/sentinel/pkg/audit"
	"github.com/havenmind/sentinel/pkg/catalog"
	"github.com/havenmind/sentinel/pkg/config"
	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/engine"
	"github.com/havenmind/sentinel/pkg/escalation"
	"github.com/havenmind/sentinel/pkg/intervention"
	"github.com/havenmind/sentinel/pkg/notify"
	"github.com/havenmind/sentinel/pkg/observability"
	"github.com/havenmind/sentinel/pkg/protocol"
	"github.com/havenmind/sentinel/pkg/validator"

	_ "modernc.org/sqlite"
)

// Pipeline is the composed safety validation and crisis intervention
// stack. Construct with New; all methods are safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	holder    *catalog.Holder
	engine    *engine.Engine
	validator *validator.Validator
	registry  *notify.Registry
	escalator *escalation.Service
	manager   *intervention.Manager
	protocols *protocol.Engine
	auditor   audit.Logger
	obs       *observability.Provider
	logger    *slog.Logger

	auditDB *sql.DB
	rdb     *redis.Client
}

// Option configures pipeline construction.
type Option func(*options)

type options struct {
	contactor notify.EmergencyContactor
	providers map[contracts.NotificationChannel]notify.Provider
	auditor   audit.Logger
	logger    *slog.Logger
}

// WithContactor overrides the emergency contactor. The default logs the
// contact attempt instead of reaching a real gateway.
func WithContactor(c notify.EmergencyContactor) Option {
	return func(o *options) { o.contactor = c }
}

// WithProvider wires a delivery provider for one notification channel.
func WithProvider(ch contracts.NotificationChannel, p notify.Provider) Option {
	return func(o *options) {
		if o.providers == nil {
			o.providers = map[contracts.NotificationChannel]notify.Provider{}
		}
		o.providers[ch] = p
	}
}

// WithAuditor overrides the audit sink.
func WithAuditor(a audit.Logger) Option {
	return func(o *options) { o.auditor = a }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the pipeline from configuration. Rule bundle problems and
// invalid guard expressions fail construction; a missing Redis or OTLP
// endpoint simply disables that integration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	holder := catalog.NewHolder(cat)

	eng, err := engine.New(holder)
	if err != nil {
		return nil, err
	}

	val := validator.New(eng,
		validator.WithAlternatives(cfg.AlternativesEnabled),
		validator.WithLogger(logger.With("component", "validator")),
	)

	registry := buildRegistry(cfg, o.providers, logger)

	directory := notify.DefaultServiceDirectory()
	for crisisType, service := range cfg.EmergencyServices {
		if contact, ok := directory[service]; ok {
			directory[crisisType] = contact
		}
	}

	contactor := o.contactor
	if contactor == nil {
		contactor = &notify.LoggingContactor{Logger: logger.With("component", "emergency")}
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Environment = cfg.Environment
	if cfg.OTLPEndpoint != "" {
		obsCfg.Enabled = true
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	escalator := escalation.NewService(registry, contactor, directory,
		escalation.WithLogger(logger.With("component", "escalation")),
		escalation.WithSendFailureHook(func(ch contracts.NotificationChannel) {
			obs.RecordNotifyFailure(context.Background(), string(ch))
		}),
	)

	p := &Pipeline{
		cfg:       cfg,
		holder:    holder,
		engine:    eng,
		validator: val,
		registry:  registry,
		escalator: escalator,
		obs:       obs,
		logger:    logger,
	}

	store, err := p.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.manager = intervention.NewManager(store, escalator,
		intervention.WithLogger(logger.With("component", "intervention")),
	)

	p.protocols, err = protocol.NewEngine(nil,
		protocol.WithLogger(logger.With("component", "protocol")),
	)
	if err != nil {
		return nil, err
	}

	if err := p.buildAuditor(cfg, o.auditor); err != nil {
		return nil, err
	}

	holder.OnReload(func(c *catalog.Catalog) {
		logger.Info("rule catalog reloaded", "version", c.Version(), "rules", c.Len(), "hash", c.Hash())
	})

	return p, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.RulesDir == "" {
		return catalog.Default()
	}
	rules, err := catalog.NewLoader().LoadDir(cfg.RulesDir)
	if err != nil {
		return nil, fmt.Errorf("load rules from %s: %w", cfg.RulesDir, err)
	}
	return catalog.New(rules)
}

func buildRegistry(cfg *config.Config, providers map[contracts.NotificationChannel]notify.Provider, logger *slog.Logger) *notify.Registry {
	registry := notify.NewRegistry()
	for name, settings := range cfg.Channels {
		if !settings.Enabled {
			continue
		}
		channel, err := contracts.ParseNotificationChannel(name)
		if err != nil {
			logger.Warn("skipping unknown notification channel", "channel", name)
			continue
		}
		timeout := settings.Timeout
		if timeout <= 0 {
			timeout = cfg.SendTimeout
		}
		registry.Set(channel, notify.NewSender(notify.SenderConfig{
			Channel:       channel,
			Provider:      providers[channel],
			Recipients:    settings.Recipients,
			Timeout:       timeout,
			RatePerSecond: settings.RatePerSecond,
		}))
	}
	// The dashboard channel is always available so critical escalations
	// have a floor.
	if _, ok := registry.Get(contracts.ChannelDashboard); !ok {
		registry.Set(contracts.ChannelDashboard, notify.NewSender(notify.SenderConfig{
			Channel:  contracts.ChannelDashboard,
			Provider: notify.LogProvider(logger.With("channel", "dashboard")),
			Timeout:  cfg.SendTimeout,
		}))
	}
	return registry
}

func (p *Pipeline) buildStore(ctx context.Context, cfg *config.Config) (intervention.Store, error) {
	if cfg.RedisAddr == "" {
		return intervention.NewMemoryStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	p.rdb = rdb
	return intervention.NewRedisStore(rdb), nil
}

func (p *Pipeline) buildAuditor(cfg *config.Config, override audit.Logger) error {
	if override != nil {
		p.auditor = override
		return nil
	}
	if cfg.AuditDBPath == "" {
		p.auditor = audit.NewLogger()
		return nil
	}
	db, err := sql.Open("sqlite", cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit db %s: %w", cfg.AuditDBPath, err)
	}
	store, err := audit.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("init audit db %s: %w", cfg.AuditDBPath, err)
	}
	p.auditDB = db
	p.auditor = store
	return nil
}

// ValidateText runs the full validation pipeline on one message.
func (p *Pipeline) ValidateText(ctx context.Context, text string, sessionCtx map[string]any) *contracts.ValidationResult {
	ctx, done := p.obs.TrackOperation(ctx, "sentinel.validate",
		attribute.String("operation", "validate_text"),
	)
	result := p.validator.ValidateText(text, sessionCtx)
	done(nil)

	p.obs.RecordValidation(ctx, string(result.Level), len(result.Findings))
	sessionID := contracts.CtxString(sessionCtx, "session_id")
	if err := p.auditor.RecordTrail(ctx, sessionID, result.AuditTrail); err != nil {
		p.logger.Warn("audit trail write failed", "error", err)
	}
	return result
}

// AssessCrisis derives a crisis assessment from a validation result.
func (p *Pipeline) AssessCrisis(ctx context.Context, result *contracts.ValidationResult, sessionCtx map[string]any) *contracts.CrisisAssessment {
	assessment := p.manager.AssessCrisis(result, sessionCtx)
	if len(assessment.CrisisTypes) > 0 {
		p.obs.RecordCrisis(ctx, string(assessment.Level))
	}
	return assessment
}

// InitiateIntervention starts a crisis intervention for an assessment,
// escalating per the assessment level. Emergency protocols run for
// critical interventions; their scripted response replaces none of the
// intervention record, it augments the audit trail.
func (p *Pipeline) InitiateIntervention(ctx context.Context, assessment *contracts.CrisisAssessment, sessionID, userID string) (*contracts.CrisisIntervention, error) {
	ctx, done := p.obs.TrackOperation(ctx, "sentinel.intervene",
		attribute.String("operation", "initiate_intervention"),
		attribute.String("crisis.level", string(assessment.Level)),
	)

	iv, err := p.manager.InitiateIntervention(ctx, assessment, sessionID, userID)
	done(err)
	if err != nil {
		return iv, err
	}

	if assessment.EscalationRequired {
		p.obs.RecordEscalation(ctx, string(assessment.Level))
	}
	if iv.EmergencyContacted {
		p.obs.RecordEmergencyContact(ctx, string(assessment.Level))
	}

	if len(assessment.CrisisTypes) > 0 {
		exec := p.protocols.Execute(ctx, assessment.CrisisTypes[0], assessment.Level, map[string]any{
			"session_id":      sessionID,
			"intervention_id": iv.ID,
			"crisis_level":    string(assessment.Level),
		})
		_ = p.auditor.Record(ctx, sessionID, "protocol_executed", map[string]any{
			"execution_id":     exec.ID,
			"intervention_id":  iv.ID,
			"steps":            len(exec.Steps),
			"success":          exec.Success,
			"aborted":          exec.Aborted,
			"response_time_ms": exec.ResponseTimeMs,
		})
	}

	_ = p.auditor.Record(ctx, sessionID, "intervention_initiated", map[string]any{
		"intervention_id":     iv.ID,
		"crisis_level":        string(assessment.Level),
		"escalation_status":   string(iv.EscalationStatus),
		"emergency_contacted": iv.EmergencyContacted,
	})
	return iv, nil
}

// ResolveIntervention closes an active intervention. Returns false with a
// nil error when the id is unknown.
func (p *Pipeline) ResolveIntervention(ctx context.Context, id, notes string) (bool, error) {
	resolved, err := p.manager.ResolveIntervention(ctx, id, notes)
	if err != nil || !resolved {
		return resolved, err
	}
	if iv, ok, _ := p.manager.GetInterventionStatus(ctx, id); ok && iv.ResolvedAt != nil {
		p.obs.RecordInterventionDuration(ctx, iv.ResolvedAt.Sub(iv.CreatedAt))
	}
	_ = p.auditor.Record(ctx, "", "intervention_resolved", map[string]any{
		"intervention_id": id,
		"notes":           notes,
	})
	return true, nil
}

// GetInterventionStatus looks up an intervention by id across active and
// archived records.
func (p *Pipeline) GetInterventionStatus(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	return p.manager.GetInterventionStatus(ctx, id)
}

// CrisisMetrics is the aggregate counter snapshot across pipeline
// components.
type CrisisMetrics struct {
	Validations       int64  `json:"validations"`
	Violations        int64  `json:"violations"`
	CrisisDetections  int64  `json:"crisis_detections"`
	Escalations       int64  `json:"escalations"`
	ActiveEscalations int    `json:"active_escalations"`
	FailedSends       int64  `json:"failed_sends"`
	Initiated         int64  `json:"interventions_initiated"`
	Active            int    `json:"interventions_active"`
	Resolved          int64  `json:"interventions_resolved"`
	EscalationsFailed int64  `json:"escalations_failed"`
	EmergencyContacts int64  `json:"emergency_contacts"`
	CatalogVersion    uint64 `json:"catalog_version"`
	CatalogRules      int    `json:"catalog_rules"`
}

// GetCrisisMetrics snapshots current counters.
func (p *Pipeline) GetCrisisMetrics(ctx context.Context) (CrisisMetrics, error) {
	vm := p.validator.Metrics()
	im, err := p.manager.Metrics(ctx)
	if err != nil {
		return CrisisMetrics{}, err
	}
	cat := p.holder.Current()
	return CrisisMetrics{
		Validations:       vm.Validations,
		Violations:        vm.Violations,
		CrisisDetections:  vm.CrisisDetections,
		Escalations:       vm.Escalations,
		ActiveEscalations: p.escalator.ActiveCount(),
		FailedSends:       p.escalator.FailedSends(),
		Initiated:         im.Initiated,
		Active:            im.Active,
		Resolved:          im.Resolved,
		EscalationsFailed: im.EscalationsFailed,
		EmergencyContacts: im.EmergencyContacts,
		CatalogVersion:    cat.Version(),
		CatalogRules:      cat.Len(),
	}, nil
}

// AddRule hot-adds a safety rule to the live catalog.
func (p *Pipeline) AddRule(rule contracts.SafetyRule) error {
	if rule.Guard != "" {
		if err := p.engine.Guards().Compile(rule.Guard); err != nil {
			return err
		}
	}
	_, err := p.holder.AddRule(rule)
	return err
}

// RemoveRule hot-removes a rule by id. Returns false when absent.
func (p *Pipeline) RemoveRule(id string) (bool, error) {
	return p.holder.RemoveRule(id)
}

// Catalog returns the live catalog snapshot.
func (p *Pipeline) Catalog() *catalog.Catalog { return p.holder.Current() }

// Escalator exposes the escalation service for acknowledge/resolve flows.
func (p *Pipeline) Escalator() *escalation.Service { return p.escalator }

// Shutdown flushes telemetry and closes owned connections.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := p.obs.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if p.auditDB != nil {
		if err := p.auditDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.rdb != nil {
		if err := p.rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
