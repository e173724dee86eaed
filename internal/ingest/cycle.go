package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/ai"
	"mail-sticky-go/internal/config"
	"mail-sticky-go/internal/fetcher"
	"mail-sticky-go/internal/metrics"
	"mail-sticky-go/internal/model"
	"mail-sticky-go/internal/repository"
)

const defaultMaxRetries = 5

// Options controls how messages are turned into records
type Options struct {
	ClassifyBeforeAdd bool
	DropLabels        map[string]bool
	SummaryMaxLen     int
	MarkAsRead        bool
	MaxRetries        int
	Location          *time.Location
}

// OptionsFromConfig builds cycle options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.App.LoadLocation()
	if err != nil {
		return Options{}, fmt.Errorf("invalid app location: %w", err)
	}
	return Options{
		ClassifyBeforeAdd: cfg.AI.ClassifyBeforeAdd,
		DropLabels:        cfg.AI.DropSet(),
		SummaryMaxLen:     cfg.AI.SummaryMaxLen,
		MarkAsRead:        cfg.IMAP.MarkAsRead,
		MaxRetries:        cfg.App.MaxRetries,
		Location:          loc,
	}, nil
}

// Result describes one finished cycle
type Result struct {
	Status  string
	Created int
	Dropped int
	Failed  int
	Cursor  uint32
	Mode    ai.Mode
	Err     error
}

// Cycle runs one ingestion pass over the mailbox
type Cycle struct {
	dialer      fetcher.Dialer
	repo        *repository.Repository
	adapter     *ai.Adapter
	opts        Options
	status      *StatusBoard
	diagnostics *Diagnostics
	metrics     *metrics.Metrics
}

// NewCycle creates a new ingestion cycle
func NewCycle(dialer fetcher.Dialer, repo *repository.Repository, adapter *ai.Adapter, opts Options,
	status *StatusBoard, diagnostics *Diagnostics, metrics *metrics.Metrics) *Cycle {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.SummaryMaxLen <= 0 {
		opts.SummaryMaxLen = ai.DefaultSummaryMaxLen
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Cycle{
		dialer:      dialer,
		repo:        repo,
		adapter:     adapter,
		opts:        opts,
		status:      status,
		diagnostics: diagnostics,
		metrics:     metrics,
	}
}

// Run performs one cycle and publishes its status. It never panics.
func (c *Cycle) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	c.metrics.CycleCount.Inc()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("ingestion cycle panicked: %v", r)
			logrus.WithField("panic", r).Error("Recovered from panic in ingestion cycle")
			c.diagnostics.Record("cycle", err)
			result = Result{Status: StatusIMAPErr, Err: err}
		}
		if result.Status == StatusIMAPErr {
			c.metrics.CycleErrors.Inc()
		}
		c.metrics.ProcessingTime.Observe(time.Since(startTime).Seconds())
		c.status.Set(result.Status)
		logrus.WithFields(logrus.Fields{
			"status":   result.Status,
			"created":  result.Created,
			"dropped":  result.Dropped,
			"failed":   result.Failed,
			"duration": time.Since(startTime).String(),
		}).Info("Ingestion cycle completed")
	}()

	return c.run(ctx)
}

func (c *Cycle) run(ctx context.Context) Result {
	if !c.dialer.Configured() {
		logrus.Warn("IMAP credentials not set; skipping poll")
		return Result{Status: StatusIMAPOff, Mode: ai.ModeOff}
	}

	mbox, err := c.dialer.Open(ctx)
	if err != nil {
		return c.abort("imap", err)
	}
	defer func() {
		if err := mbox.Close(); err != nil {
			logrus.Debugf("Failed to close mailbox: %v", err)
		}
	}()

	cursor, err := c.repo.GetCursor(ctx)
	if err != nil {
		return c.abort("store", err)
	}

	ids, err := mbox.ListNewIDs(ctx, cursor)
	if err != nil {
		return c.abort("imap", err)
	}

	pending := c.loadRetries(ctx)
	work := mergeIDs(ids, pending)
	if len(work) == 0 {
		return Result{Status: StatusNoNew, Cursor: cursor}
	}
	logrus.Infof("Found %d messages to process (%d retries)", len(work), len(pending))

	result := Result{Cursor: cursor}
	maxSeen := cursor
	// Once a failed UID cannot be queued for retry, the cursor stays below it.
	blocked := false
	var summaryMode, classifyMode ai.Mode

	for _, uid := range work {
		if ctx.Err() != nil {
			logrus.Info("Ingestion cycle cancelled, stopping early")
			break
		}

		step, err := c.processMessage(ctx, mbox, uid)
		if step.classifyMode != "" {
			classifyMode = step.classifyMode
		}
		if step.summaryMode != "" {
			summaryMode = step.summaryMode
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			result.Failed++
			if err := c.deferMessage(ctx, uid, err); err != nil {
				blocked = true
			} else if !blocked {
				maxSeen = maxUID(maxSeen, uid)
			}
			continue
		}

		switch {
		case step.created:
			result.Created++
			c.metrics.RecordsCreated.Inc()
		case step.dropped:
			result.Dropped++
			c.metrics.MessagesDropped.Inc()
		}
		if _, ok := pending[uid]; ok {
			if err := c.repo.RemovePending(ctx, uid); err != nil {
				logrus.Warnf("Failed to clear retry entry for UID %d: %v", uid, err)
			}
		}
		if !blocked {
			maxSeen = maxUID(maxSeen, uid)
		}
	}

	// Progress made before a cancellation is still persisted.
	stored, err := c.repo.SetCursor(context.WithoutCancel(ctx), maxSeen)
	if err != nil {
		logrus.Errorf("Failed to persist cursor %d: %v", maxSeen, err)
		c.diagnostics.Record("store", err)
		stored = cursor
	}
	result.Cursor = stored

	switch {
	case summaryMode != "":
		result.Mode = summaryMode
	case classifyMode != "":
		result.Mode = classifyMode
	default:
		result.Mode = ai.ModeOff
	}
	result.Status = fmt.Sprintf("AI %s | +%d / dropped %d", result.Mode, result.Created, result.Dropped)
	return result
}

func (c *Cycle) abort(source string, err error) Result {
	logrus.Errorf("Ingestion cycle aborted: %v", err)
	c.diagnostics.Record(source, err)
	return Result{Status: StatusIMAPErr, Err: err}
}

type messageStep struct {
	created      bool
	dropped      bool
	classifyMode ai.Mode
	summaryMode  ai.Mode
}

// processMessage handles one UID. A returned error means the UID was not marked
// processed and should be retried.
func (c *Cycle) processMessage(ctx context.Context, mbox fetcher.Mailbox, uid uint32) (messageStep, error) {
	var step messageStep
	key := strconv.FormatUint(uint64(uid), 10)

	done, err := c.repo.IsProcessed(ctx, key)
	if err != nil {
		return step, err
	}
	if done {
		logrus.Debugf("Message %s already processed, skipping", key)
		return step, nil
	}

	raw, err := mbox.FetchRaw(ctx, uid)
	if err != nil {
		return step, err
	}
	parsed, err := fetcher.ParseMessage(raw, c.opts.Location)
	if err != nil {
		return step, err
	}

	label := ai.LabelActionable
	if c.opts.ClassifyBeforeAdd {
		cls := c.adapter.Classify(ctx, parsed.Body, parsed.Subject)
		step.classifyMode = cls.Mode
		c.observeAI("classify", cls.Mode, cls.Err)
		label = cls.Label

		if c.opts.DropLabels[label] {
			if err := c.repo.MarkProcessed(ctx, key, model.OutcomeDropped, label); err != nil {
				return step, err
			}
			logrus.Infof("Dropped message %s classified as %s", key, label)
			step.dropped = true
			return step, nil
		}
	}

	summary := c.adapter.Summarize(ctx, parsed.Body, parsed.Subject, c.opts.SummaryMaxLen)
	step.summaryMode = summary.Mode
	c.observeAI("summarize", summary.Mode, summary.Err)

	rec := &model.Record{
		SourceMessageID: &key,
		Subject:         parsed.Subject,
		Snippet:         parsed.Snippet,
		Sender:          parsed.Sender,
		Received:        parsed.Received,
		Summary:         summary.Text,
		Text:            model.ComposeText(parsed.Sender, parsed.Received, summary.Text),
	}
	err = c.repo.InsertRecordAndMark(ctx, rec, label)
	if errors.Is(err, repository.ErrAlreadyProcessed) {
		logrus.Debugf("Message %s was stored concurrently, skipping", key)
		return step, nil
	}
	if err != nil {
		return step, err
	}
	step.created = true
	logrus.Infof("Created record %d from message %s", rec.ID, key)

	if c.opts.MarkAsRead {
		if err := mbox.MarkSeen(ctx, uid); err != nil {
			logrus.Warnf("Failed to mark message %s as read: %v", key, err)
		}
	}
	return step, nil
}

func (c *Cycle) observeAI(operation string, mode ai.Mode, err error) {
	c.metrics.AIResults.WithLabelValues(operation, string(mode)).Inc()
	if mode == ai.ModeFallback {
		c.diagnostics.Record("ai."+operation, err)
	}
}

// deferMessage puts a failed UID on the retry queue
func (c *Cycle) deferMessage(ctx context.Context, uid uint32, cause error) error {
	logrus.Warnf("Failed to process message %d, queued for retry: %v", uid, cause)
	c.metrics.FetchFailures.Inc()
	c.diagnostics.Record("message", fmt.Errorf("uid %d: %w", uid, cause))
	if err := c.repo.EnqueuePending(ctx, uid, cause.Error()); err != nil {
		logrus.Errorf("Failed to queue message %d for retry: %v", uid, err)
		c.diagnostics.Record("store", err)
		return err
	}
	return nil
}

// loadRetries returns queued UIDs that still have attempts left; exhausted ones are abandoned
func (c *Cycle) loadRetries(ctx context.Context) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	pending, err := c.repo.ListPending(ctx)
	if err != nil {
		logrus.Warnf("Failed to load retry queue: %v", err)
		return out
	}
	for _, p := range pending {
		if p.Attempts >= c.opts.MaxRetries {
			logrus.Warnf("Giving up on message %d after %d attempts: %s", p.UID, p.Attempts, p.LastError)
			if err := c.repo.RemovePending(ctx, p.UID); err != nil {
				logrus.Warnf("Failed to remove retry entry for UID %d: %v", p.UID, err)
			}
			continue
		}
		out[p.UID] = struct{}{}
	}
	c.metrics.PendingMessages.Set(float64(len(out)))
	return out
}

func mergeIDs(ids []uint32, pending map[uint32]struct{}) []uint32 {
	seen := make(map[uint32]struct{}, len(ids)+len(pending))
	out := make([]uint32, 0, len(ids)+len(pending))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for id := range pending {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func maxUID(a, b uint32) uint32 {
	if b > a {
		return b
	}
	return a
}
