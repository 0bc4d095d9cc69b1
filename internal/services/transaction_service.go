package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"smartfinance/internal/analysis"
	"smartfinance/internal/cache"
	"smartfinance/internal/core"
	"smartfinance/internal/insights"
	"smartfinance/internal/ledger"
	applog "smartfinance/internal/log"
	"smartfinance/internal/ports"
)

// AnalysisClient is the subset of analysis.Client the service uses.
type AnalysisClient interface {
	AnalyzeSpending(ctx context.Context, filename string, r io.Reader) ([]byte, error)
	ScoreTransaction(ctx context.Context, in analysis.ScoreRequest) (analysis.Score, error)
	SendFeedback(ctx context.Context, e core.FeedbackEntry) error
}

// Publisher is the subset of amqp.Client the service uses.
type Publisher interface {
	PublishFeedback(ctx context.Context, outboxID int64, e core.FeedbackEntry) error
	PublishExport(ctx context.Context, sessionID string, r core.TransactionRecord) error
}

var ErrTransactionNotFound = errors.New("transaction not found")

const (
	DefaultAdvisoryThreshold = 0.5
	DefaultAdvisoryTimeout   = 8 * time.Second
	DefaultFeedbackTimeout   = 10 * time.Second
)

type Options struct {
	// AdvisoryThreshold: scores strictly below it prompt the user.
	AdvisoryThreshold float64
	AdvisoryTimeout   time.Duration
	FeedbackTimeout   time.Duration
	ScoreCacheSize    int
	ScoreCacheTTL     time.Duration
}

func DefaultOptions() Options {
	return Options{
		AdvisoryThreshold: DefaultAdvisoryThreshold,
		AdvisoryTimeout:   DefaultAdvisoryTimeout,
		FeedbackTimeout:   DefaultFeedbackTimeout,
		ScoreCacheSize:    256,
		ScoreCacheTTL:     10 * time.Minute,
	}
}

type (
	// AddResult is the outcome of a form submission. Advisory is nil when the
	// service could not be reached or the submission was ignored.
	AddResult struct {
		Ignored     bool
		Transaction core.TransactionRecord
		Advisory    *core.Advisory
	}

	// DisplayTransaction is a record plus its presentation date.
	DisplayTransaction struct {
		core.TransactionRecord
		DisplayDate string
	}

	Dashboard struct {
		Summary      core.Summary
		Insights     []core.InsightNote
		Transactions []DisplayTransaction
		Selected     string
		Draft        core.FormInput
	}
)

// TransactionService orchestrates a session's ledger, local persistence, the
// analysis service and the AMQP queues.
type TransactionService struct {
	registry   *ledger.Registry
	normalizer *core.Normalizer
	mapper     *insights.Mapper
	analysis   AnalysisClient
	store      ports.Repository
	publisher  Publisher
	scores     *cache.LRUCache[analysis.Score]
	hydrate    singleflight.Group
	opts       Options
	logger     *applog.Logger

	// async runs fire-and-forget work; tests replace it to run inline.
	async func(func())
}

// NewTransactionService wires the service. store and publisher may be nil.
func NewTransactionService(registry *ledger.Registry, client AnalysisClient, store ports.Repository, publisher Publisher, opts Options, logger *applog.Logger) *TransactionService {
	if registry == nil {
		registry = ledger.NewRegistry(nil)
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.AdvisoryTimeout <= 0 {
		opts.AdvisoryTimeout = DefaultAdvisoryTimeout
	}
	if opts.FeedbackTimeout <= 0 {
		opts.FeedbackTimeout = DefaultFeedbackTimeout
	}
	if opts.ScoreCacheSize <= 0 {
		opts.ScoreCacheSize = 256
	}
	if opts.ScoreCacheTTL <= 0 {
		opts.ScoreCacheTTL = 10 * time.Minute
	}
	n := core.NewNormalizer()
	return &TransactionService{
		registry:   registry,
		normalizer: n,
		mapper:     insights.NewMapper(n),
		analysis:   client,
		store:      store,
		publisher:  publisher,
		scores:     cache.NewLRUCache[analysis.Score](opts.ScoreCacheSize, opts.ScoreCacheTTL),
		opts:       opts,
		logger:     logger.WithComponent(applog.ComponentLedger),
		async:      func(f func()) { go f() },
	}
}

// ScoreCache exposes the advisory cache so it can be registered for cleanup.
func (s *TransactionService) ScoreCache() *cache.LRUCache[analysis.Score] {
	return s.scores
}

// Session returns the session for id. A session unknown to the registry is
// rebuilt from storage; one unknown to storage is seeded with the initial
// state so later rebuilds start from the same list the user saw.
func (s *TransactionService) Session(ctx context.Context, id string) *ledger.Session {
	if sess, err := s.registry.Get(id); err == nil {
		return sess
	}
	v, _, _ := s.hydrate.Do(id, func() (any, error) {
		if sess, err := s.registry.Get(id); err == nil {
			return sess, nil
		}
		// Shared by every waiting caller, so one cancelled request must not
		// abort the load for the rest.
		return s.registry.Adopt(id, s.restore(context.WithoutCancel(ctx), id)), nil
	})
	return v.(*ledger.Session)
}

func (s *TransactionService) restore(ctx context.Context, id string) ledger.State {
	st := s.registry.Initial()
	if s.store == nil {
		return st
	}
	data, found, err := s.store.LoadSession(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load stored session",
			applog.FieldSessionID, id, applog.FieldError, err)
		return st
	}
	if !found {
		s.persistSession(ctx, id, st)
		return st
	}
	st.Transactions = data.Transactions
	if data.Categories != nil {
		st.Categories = data.Categories
	}
	if data.Insights != nil {
		st.Insights = data.Insights
	}
	return st
}

func (s *TransactionService) persistSession(ctx context.Context, id string, st ledger.State) {
	if s.store == nil {
		return
	}
	err := s.store.ReplaceSession(ctx, id, ports.SessionData{
		Categories:   st.Categories,
		Insights:     st.Insights,
		Transactions: st.Transactions,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist session",
			applog.FieldSessionID, id, applog.FieldError, err)
	}
}

// AddTransaction commits a form submission locally, then asks the analysis
// service for an advisory. Failures after the local commit never undo it.
func (s *TransactionService) AddTransaction(ctx context.Context, sessionID string, in core.FormInput) (AddResult, error) {
	sess := s.Session(ctx, sessionID)

	rec, ok := s.normalizer.FromForm(in)
	if !ok {
		sess.Dispatch(ledger.EditDraft{Input: in})
		s.logger.DebugContext(ctx, "Ignoring incomplete submission", applog.FieldSessionID, sessionID)
		return AddResult{Ignored: true}, nil
	}

	sess.Dispatch(ledger.AddTransaction{Record: rec})
	sess.Dispatch(ledger.ResetDraft{})
	if s.store != nil {
		if err := s.store.SaveTransaction(ctx, sessionID, rec); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist transaction",
				applog.FieldSessionID, sessionID, applog.FieldTransactionID, rec.ID, applog.FieldError, err)
		}
	}
	applog.NewStructuredLogger(s.logger).LogTransactionCreated(ctx, sessionID, rec.ID,
		rec.Description, rec.Amount.String(), rec.Category, string(rec.Kind))

	result := AddResult{Transaction: rec}
	if adv, ok := s.advise(ctx, rec); ok {
		result.Advisory = &adv
		if adv.Prompt {
			flagged := rec.WithFlagged(true)
			s.replace(ctx, sess, sessionID, flagged)
			result.Transaction = flagged
		}
	}

	s.publishExport(ctx, sessionID, result.Transaction)
	return result, nil
}

func (s *TransactionService) advise(ctx context.Context, rec core.TransactionRecord) (core.Advisory, bool) {
	if s.analysis == nil {
		return core.Advisory{}, false
	}
	req := analysis.ScoreRequest{
		Description: rec.Description,
		Category:    rec.Category,
		Amount:      rec.Amount.String(),
	}
	key := strings.Join([]string{strings.ToLower(req.Description), strings.ToLower(req.Category), req.Amount}, "|")

	score, hit := s.scores.Get(key)
	if !hit {
		sctx, cancel := context.WithTimeout(ctx, s.opts.AdvisoryTimeout)
		defer cancel()
		var err error
		score, err = s.analysis.ScoreTransaction(sctx, req)
		if err != nil {
			s.logger.WarnContext(ctx, "Advisory scoring failed, keeping transaction",
				applog.FieldTransactionID, rec.ID, applog.FieldOperation, applog.OpScore, applog.FieldError, err)
			return core.Advisory{}, false
		}
		s.scores.Set(key, score)
	}

	adv := core.Advisory{
		Score:        score.Value,
		Reason:       score.Reason,
		Alternatives: score.Alternatives,
		Prompt:       score.Value < s.opts.AdvisoryThreshold,
	}
	s.logger.DebugContext(ctx, "Advisory computed",
		applog.FieldTransactionID, rec.ID, applog.FieldScore, adv.Score, "prompt", adv.Prompt, "cached", hit)
	return adv, true
}

func (s *TransactionService) replace(ctx context.Context, sess *ledger.Session, sessionID string, rec core.TransactionRecord) {
	sess.Dispatch(ledger.ReplaceTransaction{Record: rec})
	if s.store == nil {
		return
	}
	if err := s.store.UpdateTransaction(ctx, sessionID, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist transaction update",
			applog.FieldTransactionID, rec.ID, applog.FieldError, err)
	}
}

func (s *TransactionService) publishExport(ctx context.Context, sessionID string, rec core.TransactionRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExport(ctx, sessionID, rec); err != nil {
		// Export is best effort; the record is already committed.
		s.logger.ErrorContext(ctx, "Failed to publish export message",
			applog.FieldTransactionID, rec.ID, applog.FieldError, err)
	}
}

// DeleteTransaction removes the first record with id. It reports false when
// no record matched. The stored row goes first so a storage failure leaves
// the session untouched.
func (s *TransactionService) DeleteTransaction(ctx context.Context, sessionID, id string) (bool, error) {
	sess := s.Session(ctx, sessionID)
	if _, ok := sess.Snapshot().Find(id); !ok {
		return false, nil
	}
	if s.store != nil {
		if _, err := s.store.DeleteTransaction(ctx, sessionID, id); err != nil {
			return false, fmt.Errorf("delete stored transaction: %w", err)
		}
	}
	sess.Dispatch(ledger.DeleteTransaction{ID: id})

	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldSessionID, sessionID, applog.FieldTransactionID, id, applog.FieldOperation, applog.OpDelete)
	return true, nil
}

// SubmitFeedback records the user's answer to an advisory prompt and queues
// it for the analysis service. Delivery is fire-and-forget.
func (s *TransactionService) SubmitFeedback(ctx context.Context, sessionID, id string, necessary bool, reason string) error {
	sess := s.Session(ctx, sessionID)
	rec, ok := sess.Snapshot().Find(id)
	if !ok {
		return ErrTransactionNotFound
	}

	s.replace(ctx, sess, sessionID, rec.WithFlagged(!necessary))
	entry := rec.Feedback(necessary, strings.TrimSpace(reason))

	if s.publisher != nil {
		var outboxID int64
		if s.store != nil {
			var err error
			outboxID, err = s.store.EnqueueFeedback(ctx, entry)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to store feedback in outbox",
					applog.FieldTransactionID, id, applog.FieldError, err)
			}
		}
		err := s.publisher.PublishFeedback(ctx, outboxID, entry)
		if err == nil {
			return nil
		}
		if outboxID != 0 {
			// The worker sweep delivers stored rows.
			s.logger.WarnContext(ctx, "Failed to publish feedback, left in outbox",
				applog.FieldTransactionID, id, applog.FieldOutboxID, outboxID, applog.FieldError, err)
			return nil
		}
		s.logger.WarnContext(ctx, "Failed to publish feedback, sending directly",
			applog.FieldTransactionID, id, applog.FieldError, err)
	}

	s.sendFeedbackAsync(entry, id)
	return nil
}

func (s *TransactionService) sendFeedbackAsync(entry core.FeedbackEntry, id string) {
	if s.analysis == nil {
		return
	}
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.FeedbackTimeout)
		defer cancel()
		if err := s.analysis.SendFeedback(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "Feedback delivery failed",
				applog.FieldTransactionID, id, applog.FieldOperation, applog.OpFeedback, applog.FieldError, err)
		}
	})
}

// ImportStatement uploads a CSV statement, maps the analysis and installs it
// in the session. The stored session is replaced, not appended to. Transport failures are returned; a malformed payload maps
// to the placeholder categories.
func (s *TransactionService) ImportStatement(ctx context.Context, sessionID, filename string, r io.Reader) (insights.Result, error) {
	if s.analysis == nil {
		return insights.Result{}, analysis.ErrNotConfigured
	}
	body, err := s.analysis.AnalyzeSpending(ctx, filename, r)
	if err != nil {
		return insights.Result{}, fmt.Errorf("import statement: %w", err)
	}

	res := s.mapper.MapRaw(body)
	if res.Fallback {
		s.logger.WarnContext(ctx, "Analysis payload malformed, using placeholders",
			applog.FieldSessionID, sessionID, applog.FieldOperation, applog.OpImport)
	}

	sess := s.Session(ctx, sessionID)
	s.persistSession(ctx, sessionID, sess.Dispatch(ledger.LoadAnalysis{Result: res}))

	s.logger.InfoContext(ctx, "Statement imported",
		applog.FieldSessionID, sessionID,
		"transactions", len(res.Transactions),
		"categories", len(res.Categories),
		"fallback", res.Fallback)
	return res, nil
}

// SelectCategory sets the highlighted category.
func (s *TransactionService) SelectCategory(ctx context.Context, sessionID, name string) ledger.State {
	return s.Session(ctx, sessionID).Dispatch(ledger.SelectCategory{Name: strings.TrimSpace(name)})
}

// Dashboard recomputes the session's summary.
func (s *TransactionService) Dashboard(ctx context.Context, sessionID string) Dashboard {
	st := s.Session(ctx, sessionID).Snapshot()
	txs := make([]DisplayTransaction, 0, len(st.Transactions))
	for _, r := range st.Transactions {
		txs = append(txs, DisplayTransaction{TransactionRecord: r, DisplayDate: core.FormatDisplayDate(r.Date)})
	}
	insightsOut := st.Insights
	if insightsOut == nil {
		insightsOut = []core.InsightNote{}
	}
	return Dashboard{
		Summary:      st.Summary(),
		Insights:     insightsOut,
		Transactions: txs,
		Selected:     st.Selected,
		Draft:        st.Draft,
	}
}
