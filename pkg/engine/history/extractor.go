package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DrSkyle/commitraider/pkg/config"
	"github.com/DrSkyle/commitraider/pkg/engine/swarm"
	"github.com/DrSkyle/commitraider/pkg/gitrepo"
	"github.com/DrSkyle/commitraider/pkg/sys/intern"
	"github.com/DrSkyle/commitraider/pkg/telemetry"
)

// ErrCorruptHistory is returned when commit metadata cannot be read.
var ErrCorruptHistory = errors.New("unreadable commit history")

// Progress is reported after every folded batch.
type Progress struct {
	Done     int
	Total    int
	Degraded int64
}

// Source is the repository handle the extractor owns for the whole scan.
// *gitrepo.Repository implements it.
type Source interface {
	Path() string
	Head() (gitrepo.Head, error)
	CommitIDs(from string, limit int) ([]string, int, error)
	ReadCommit(id string) (gitrepo.CommitMeta, error)
	Branches() ([]string, error)
	RemoteURL() (string, error)
}

// Extractor reads commits in batches: metadata sequentially from the
// repository handle, changed files concurrently through the probe.
type Extractor struct {
	repo  Source
	probe gitrepo.ChangedFileProbe
	pool  *swarm.Pool

	batchSize   int
	sampleLimit int
	maxFiles    int

	Logger   *slog.Logger
	Tracer   trace.Tracer
	metrics  *telemetry.Instruments
	progress func(Progress)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Extractor) {
		x.Logger = l
	}
}

// WithInstruments records batch counters.
func WithInstruments(m *telemetry.Instruments) Option {
	return func(x *Extractor) {
		x.metrics = m
	}
}

// WithProgress registers a callback invoked after every batch.
func WithProgress(fn func(Progress)) Option {
	return func(x *Extractor) {
		x.progress = fn
	}
}

// NewExtractor builds an extractor from validated scan settings.
func NewExtractor(repo Source, probe gitrepo.ChangedFileProbe, cfg config.ScanConfig, opts ...Option) *Extractor {
	x := &Extractor{
		repo:        repo,
		probe:       probe,
		pool:        swarm.NewPool(cfg.ConcurrencyLimit, cfg.ProbeTimeout()),
		batchSize:   cfg.BatchSize,
		sampleLimit: cfg.SampleLimit(),
		maxFiles:    cfg.MaxFilesPerCommit,
		Logger:      slog.Default(),
		Tracer:      otel.Tracer("commitraider/history"),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// PoolStats exposes the probe pool counters.
func (x *Extractor) PoolStats() swarm.Stats {
	return x.pool.GetStats()
}

// Extract walks history from HEAD and folds every processed commit into agg.
//
// A repository without a resolvable head yields no commits. Metadata read
// failures abort with ErrCorruptHistory. Probe failures and timeouts leave
// the affected commit with no changed files. Cancellation is honoured
// between batches; probes already in flight run to completion or timeout.
func (x *Extractor) Extract(ctx context.Context, agg *Aggregator) error {
	ctx, span := x.Tracer.Start(ctx, "history.Extract", trace.WithAttributes(
		attribute.String("repo.path", x.repo.Path()),
		attribute.Int("batch.size", x.batchSize),
	))
	defer span.End()

	err := x.extract(ctx, agg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (x *Extractor) extract(ctx context.Context, agg *Aggregator) error {
	head, err := x.repo.Head()
	if errors.Is(err, gitrepo.ErrNoHead) {
		x.Logger.Info("Repository has no commits", "path", x.repo.Path())
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptHistory, err)
	}

	ids, total, err := x.repo.CommitIDs(head.ID, x.sampleLimit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptHistory, err)
	}
	stats := agg.Stats()
	stats.TotalReachable = total
	if total > len(ids) {
		stats.Sampled = true
		x.Logger.Warn("Large history, processing most recent commits only",
			"reachable", total, "processing", len(ids))
	}

	x.Logger.Debug("Extracting history", "head", head.ID, "branch", head.Branch, "commits", len(ids))

	// Probes keep running to their own deadline even if ctx is cancelled.
	probeCtx := context.WithoutCancel(ctx)
	var degraded int64

	for start := 0; start < len(ids); start += x.batchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("history extraction stopped after %d of %d commits: %w", start, len(ids), err)
		}

		end := min(start+x.batchSize, len(ids))
		batch, err := x.readBatch(ids[start:end])
		if err != nil {
			return err
		}

		outcomes := swarm.Map(probeCtx, x.pool, len(batch), func(ctx context.Context, i int) ([]gitrepo.FileChange, error) {
			return x.probe.ChangedFiles(ctx, gitrepo.ProbeRequest{
				RepoPath: x.repo.Path(),
				CommitID: batch[i].ID,
				ParentID: batch[i].ParentID,
			})
		})

		batchDegraded := 0
		for i, meta := range batch {
			o := outcomes[i]
			if o.Err != nil {
				batchDegraded++
				x.Logger.Debug("Changed-file probe degraded", "commit", meta.ID, "timed_out", o.TimedOut, "error", o.Err)
			}
			rec := newRecord(meta, o.Value, x.maxFiles)
			if meta.ID == head.ID {
				rec.Branch = head.Branch
			}
			agg.Add(rec)
		}
		degraded += int64(batchDegraded)

		x.metrics.RecordBatch(ctx, len(batch), batchDegraded)
		if x.progress != nil {
			x.progress(Progress{Done: end, Total: len(ids), Degraded: degraded})
		}
		runtime.Gosched()
	}

	if degraded > 0 {
		x.Logger.Warn("Some commits have no file information", "degraded", degraded, "commits", len(ids))
	}
	return nil
}

func (x *Extractor) readBatch(ids []string) ([]gitrepo.CommitMeta, error) {
	batch := make([]gitrepo.CommitMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := x.repo.ReadCommit(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptHistory, err)
		}
		batch = append(batch, meta)
	}
	return batch, nil
}

func newRecord(meta gitrepo.CommitMeta, changes []gitrepo.FileChange, maxFiles int) CommitRecord {
	rec := CommitRecord{
		ID:          meta.ID,
		Message:     meta.Message,
		Author:      Identity{Name: intern.String(meta.Author.Name), Email: intern.String(meta.Author.Email)},
		Committer:   Identity{Name: intern.String(meta.Committer.Name), Email: intern.String(meta.Committer.Email)},
		AuthoredAt:  meta.Author.When,
		CommittedAt: meta.Committer.When,
	}

	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		if len(rec.FilesChanged) >= maxFiles {
			break
		}
		if _, dup := seen[c.Path]; dup || c.Path == "" {
			continue
		}
		seen[c.Path] = struct{}{}
		rec.FilesChanged = append(rec.FilesChanged, c.Path)
		rec.Insertions += c.Added
		rec.Deletions += c.Removed
	}
	if rec.FilesChanged == nil {
		rec.FilesChanged = []string{}
	}
	return rec
}

// Analyze runs a full history scan of repo and returns finalized statistics.
// Branch and remote lookups are best effort.
func Analyze(ctx context.Context, repo Source, probe gitrepo.ChangedFileProbe, cfg config.ScanConfig, now time.Time, opts ...Option) (*RepositoryStats, error) {
	x := NewExtractor(repo, probe, cfg, opts...)
	agg := NewAggregator(repo.Path())
	stats := agg.Stats()

	branches, err := repo.Branches()
	if err != nil {
		x.Logger.Warn("Could not list branches", "error", err)
	}
	if branches == nil {
		branches = []string{}
	}
	stats.Branches = branches

	remote, err := repo.RemoteURL()
	if err != nil {
		x.Logger.Warn("Could not read remotes", "error", err)
	}
	stats.RemoteURL = remote
	stats.Host = gitrepo.DetectHost(remote)

	if err := x.Extract(ctx, agg); err != nil {
		return nil, err
	}
	return agg.Finalize(now, cfg.StaleThreshold()), nil
}
