package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/inference"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"go.uber.org/zap"
)

// Retriever returns up to k chunks nearest to query, nearest first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Chunk, error)
}

// Config tunes retrieval breadth, gating and generation.
type Config struct {
	// TaskKeywords drive the default classifier.
	TaskKeywords []string
	TaskK        int
	QuestionK    int
	// ConfidenceThreshold withholds extracted answers scoring below it; nil uses
	// config.DefaultConfidenceThreshold and 0 disables the gate.
	ConfidenceThreshold *float64
	TaskConfidence      float64
	RewriteMaxLength    int
	// MaxPromptTokens bounds the task prompt; 0 disables the budget.
	MaxPromptTokens int
	Roles           RoleEntityMap
	// Timeout bounds each capability call; 0 means only ctx applies.
	Timeout time.Duration
}

// ConfigFrom maps the answer section of the application config.
func ConfigFrom(cfg config.AnswerConfig, timeout time.Duration) Config {
	threshold := cfg.Threshold()
	return Config{
		TaskKeywords:        cfg.TaskKeywords,
		TaskK:               cfg.TaskK,
		QuestionK:           cfg.QuestionK,
		ConfidenceThreshold: &threshold,
		TaskConfidence:      cfg.TaskConfidence,
		RewriteMaxLength:    cfg.RewriteMaxLength,
		MaxPromptTokens:     cfg.MaxPromptTokens,
		Roles:               RoleEntityMap(cfg.Roles),
		Timeout:             timeout,
	}
}

// Orchestrator answers queries over a caller-supplied Retriever. It holds no
// per-query state and is safe for concurrent use.
type Orchestrator struct {
	extractor  inference.AnswerExtractor
	tagger     inference.EntityTagger
	rewriter   inference.Rewriter
	classifier Classifier
	tokens     inference.TokenCounter
	cfg        Config
	threshold  float64
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithTokenCounter sets the counter used for the prompt budget and prompt logging.
func WithTokenCounter(tc inference.TokenCounter) Option {
	return func(o *Orchestrator) {
		o.tokens = tc
	}
}

// New returns an orchestrator using caps. Zero config values fall back to defaults.
func New(caps inference.Capabilities, cfg Config, opts ...Option) (*Orchestrator, error) {
	if caps.Extractor == nil || caps.Tagger == nil || caps.Rewriter == nil {
		return nil, fmt.Errorf("extractor, tagger and rewriter are required")
	}
	threshold := config.DefaultConfidenceThreshold
	if cfg.ConfidenceThreshold != nil {
		threshold = *cfg.ConfidenceThreshold
	}
	if cfg.TaskK <= 0 {
		cfg.TaskK = config.DefaultTaskK
	}
	if cfg.QuestionK <= 0 {
		cfg.QuestionK = config.DefaultQuestionK
	}
	if cfg.TaskConfidence == 0 {
		cfg.TaskConfidence = config.DefaultTaskConfidence
	}
	if cfg.TaskKeywords == nil {
		cfg.TaskKeywords = config.DefaultTaskKeywords
	}
	if cfg.Roles == nil {
		cfg.Roles = RoleEntityMap(config.DefaultRoles())
	}
	o := &Orchestrator{
		extractor:  caps.Extractor,
		tagger:     caps.Tagger,
		rewriter:   caps.Rewriter,
		classifier: NewKeywordClassifier(cfg.TaskKeywords),
		cfg:        cfg,
		threshold:  threshold,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Roles returns the roles with an entity mapping.
func (o *Orchestrator) Roles() []string {
	return o.cfg.Roles.Roles()
}

// Answer answers query for role from chunks retrieved from store. It never fails:
// capability errors and timeouts yield a Result carrying ErrorMessage.
func (o *Orchestrator) Answer(ctx context.Context, store Retriever, query, role string) Result {
	start := time.Now()
	log := o.logger.With(zap.String("role", role))

	kind := o.classifier.Classify(query)
	k := o.cfg.QuestionK
	if kind == KindTask {
		k = o.cfg.TaskK
	}
	log.Debug("query classified", zap.Stringer("kind", kind), zap.Int("k", k))

	chunks, err := store.Search(ctx, query, k)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		return errorResult()
	}
	if len(chunks) == 0 {
		log.Debug("no chunks retrieved")
		return Result{Text: NoInformationMessage, Sources: []string{}, Confidence: 0}
	}
	passage, sources := assemble(chunks)
	log.Debug("chunks retrieved", zap.Int("chunks", len(chunks)), zap.Strings("sources", sources))

	var res Result
	if kind == KindTask {
		res, err = o.answerTask(ctx, log, query, passage, sources)
	} else {
		res, err = o.answerQuestion(ctx, log, query, role, passage, sources)
	}
	if err != nil {
		log.Error("answer failed", zap.Stringer("kind", kind), zap.Error(err))
		return errorResult()
	}
	log.Debug("answer done",
		zap.Float64("confidence", res.Confidence),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

func (o *Orchestrator) answerTask(ctx context.Context, log *zap.Logger, query, passage string, sources []string) (Result, error) {
	prompt := o.budgetTaskPrompt(log, query, passage)
	text, err := o.rewrite(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("task generation: %w", err)
	}
	log.Debug("task answered")
	return Result{Text: text, Sources: sources, Confidence: o.cfg.TaskConfidence}, nil
}

func (o *Orchestrator) answerQuestion(ctx context.Context, log *zap.Logger, query, role, passage string, sources []string) (Result, error) {
	cctx, cancel := o.capabilityContext(ctx)
	raw, err := o.extractor.ExtractAnswer(cctx, query, passage)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("answer extraction: %w", inference.Wrap(err))
	}
	log.Debug("answer extracted", zap.Float64("confidence", raw.Confidence))

	if raw.Confidence < o.threshold {
		log.Debug("confidence below threshold", zap.Float64("threshold", o.threshold))
		return Result{Text: LowConfidenceMessage, Sources: sources, Confidence: raw.Confidence}, nil
	}

	cctx, cancel = o.capabilityContext(ctx)
	entities, err := o.tagger.TagEntities(cctx, passage)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("entity tagging: %w", inference.Wrap(err))
	}
	keyEntities := formatEntities(entities, o.cfg.Roles.allowed(role))
	log.Debug("entities filtered", zap.Int("tagged", len(entities)), zap.String("key_entities", keyEntities))

	text, err := o.rewrite(ctx, enhancePrompt(raw.Text, keyEntities))
	if err != nil {
		return Result{}, fmt.Errorf("answer enhancement: %w", err)
	}
	log.Debug("answer enhanced")
	return Result{Text: text, Sources: sources, Confidence: raw.Confidence}, nil
}

func (o *Orchestrator) rewrite(ctx context.Context, prompt string) (string, error) {
	if o.tokens != nil {
		o.logger.Debug("rewrite prompt", zap.Int("tokens", o.tokens.Count(prompt)))
	}
	cctx, cancel := o.capabilityContext(ctx)
	defer cancel()
	text, err := o.rewriter.Rewrite(cctx, prompt, o.cfg.RewriteMaxLength)
	if err != nil {
		return "", inference.Wrap(err)
	}
	return text, nil
}

// budgetTaskPrompt trims the context so the whole prompt fits MaxPromptTokens.
func (o *Orchestrator) budgetTaskPrompt(log *zap.Logger, query, passage string) string {
	prompt := taskPrompt(query, passage)
	if o.cfg.MaxPromptTokens <= 0 || o.tokens == nil {
		return prompt
	}
	total := o.tokens.Count(prompt)
	if total <= o.cfg.MaxPromptTokens {
		return prompt
	}
	overhead := o.tokens.Count(taskPrompt(query, ""))
	room := max(o.cfg.MaxPromptTokens-overhead, 0)
	log.Debug("task context truncated",
		zap.Int("prompt_tokens", total),
		zap.Int("budget", o.cfg.MaxPromptTokens),
		zap.Int("context_tokens", room))
	return taskPrompt(query, o.tokens.Truncate(passage, room))
}

func (o *Orchestrator) capabilityContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, o.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}
