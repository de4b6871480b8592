// Package pull reconciles the local job store with the remote workspace
// copy. The remote store is authoritative except where local pending edits
// are newer or the local record is sealed evidence.
package pull

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/agent/remote"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/actions"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/conflicts"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/jobs"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/media"
	"github.com/fieldsync/fieldsync/internal/agent/repositories/orphans"
	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

// resultTTL is how long a finished pull is reused. Bursts of refresh
// triggers (reconnect, schedule, user swipe) collapse into one cycle.
const resultTTL = 2 * time.Second

// Notifier surfaces the per-cycle conflict summary to the user.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Summary describes one reconcile cycle.
type Summary struct {
	Pulled    int
	FromCloud int
	Preserved int
	Merged    int
	Deleted   int
}

// Conflicts is the number of records where the two copies disagreed.
func (s Summary) Conflicts() int { return s.FromCloud + s.Preserved + s.Merged }

type cachedResult struct {
	summary Summary
	err     error
	at      time.Time
}

type Engine struct {
	jobs      jobs.Repository
	actions   actions.Repository
	media     media.Repository
	orphans   orphans.Repository
	conflicts conflicts.Repository
	remote    remote.Client
	clock     clockx.Clock
	logger    logging.Logger
	notifier  Notifier

	group singleflight.Group
	mu    sync.Mutex
	last  map[string]cachedResult
}

type Config struct {
	Jobs      jobs.Repository
	Actions   actions.Repository
	Media     media.Repository
	Orphans   orphans.Repository
	Conflicts conflicts.Repository
	Remote    remote.Client
	Clock     clockx.Clock
	Logger    logging.Logger
	Notifier  Notifier
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		jobs:      cfg.Jobs,
		actions:   cfg.Actions,
		media:     cfg.Media,
		orphans:   cfg.Orphans,
		conflicts: cfg.Conflicts,
		remote:    cfg.Remote,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With("component", "pull"),
		notifier:  cfg.Notifier,
		last:      make(map[string]cachedResult),
	}
}

// Pull runs one reconcile cycle for the workspace. Concurrent callers share
// a single cycle, and a cycle finished less than resultTTL ago is returned
// as-is.
func (e *Engine) Pull(ctx context.Context, workspaceID string) (Summary, error) {
	e.mu.Lock()
	if r, ok := e.last[workspaceID]; ok && e.clock.Now().Sub(r.at) < resultTTL {
		e.mu.Unlock()
		return r.summary, r.err
	}
	e.mu.Unlock()

	v, err, _ := e.group.Do(workspaceID, func() (any, error) {
		summary, perr := e.pull(ctx, workspaceID)
		e.mu.Lock()
		e.last[workspaceID] = cachedResult{summary: summary, err: perr, at: e.clock.Now()}
		e.mu.Unlock()
		return summary, perr
	})
	return v.(Summary), err
}

func (e *Engine) pull(ctx context.Context, workspaceID string) (Summary, error) {
	remoteJobs, err := e.remote.PullJobs(ctx, workspaceID)
	if err != nil {
		return Summary{}, err
	}
	localJobs, err := e.jobs.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return Summary{}, err
	}

	localByID := make(map[string]*models.Job, len(localJobs))
	for _, j := range localJobs {
		localByID[j.ID] = j
	}
	remoteIDs := make(map[string]struct{}, len(remoteJobs))

	var summary Summary
	summary.Pulled = len(remoteJobs)

	for _, rj := range remoteJobs {
		remoteIDs[rj.ID] = struct{}{}
		local, ok := localByID[rj.ID]
		if !ok {
			if err := e.jobs.Replace(ctx, rj); err != nil {
				return summary, err
			}
			continue
		}
		if err := e.reconcile(ctx, local, rj, &summary); err != nil {
			return summary, err
		}
	}

	for _, local := range localJobs {
		if _, ok := remoteIDs[local.ID]; ok {
			continue
		}
		if local.Sealed() {
			// sealed evidence is never deleted by a pull
			continue
		}
		if err := e.deleteLocal(ctx, local, &summary); err != nil {
			return summary, err
		}
	}

	e.notifySummary(ctx, summary)
	e.logger.Info(ctx, "pull finished", "workspace_id", workspaceID,
		"pulled", summary.Pulled, "conflicts", summary.Conflicts(), "deleted", summary.Deleted)
	return summary, nil
}

func (e *Engine) reconcile(ctx context.Context, local, rj *models.Job, summary *Summary) error {
	switch {
	case rj.Sealed() && !local.Sealed():
		// sealed remote copy always wins; queued local edits are moot
		if err := e.jobs.Replace(ctx, rj); err != nil {
			return err
		}
		if err := e.actions.DeleteByJobID(ctx, rj.ID); err != nil {
			return err
		}
		if local.HasPendingChanges() {
			summary.FromCloud++
			e.record(ctx, models.ConflictSealedRemote, rj.ID, models.ResolutionServerAccepted, local, rj)
		}
		return nil

	case local.HasPendingChanges() && local.NewerThan(rj):
		summary.Preserved++
		e.record(ctx, models.ConflictBothEdited, rj.ID, models.ResolutionLocalPreserved, local, rj)
		return nil

	case local.HasPendingChanges():
		merged := e.merge(local, rj)
		if err := e.jobs.Replace(ctx, merged); err != nil {
			return err
		}
		summary.Merged++
		e.record(ctx, models.ConflictBothEdited, rj.ID, models.ResolutionMerged, local, rj)
		return nil

	default:
		err := e.jobs.Replace(ctx, rj)
		if errors.Is(err, syncerr.ErrSealed) {
			// an unsealed remote copy never overwrites sealed local
			// evidence; skip the row so the rest of the cycle proceeds
			e.logger.Warn(ctx, "remote copy rejected by sealed local record", "job_id", rj.ID)
			return nil
		}
		return err
	}
}

// merge takes the remote copy as base and re-attaches local-only evidence:
// photos the remote does not know about and an unsynced signature. The
// result goes back on the queue as a pending change.
func (e *Engine) merge(local, rj *models.Job) *models.Job {
	merged := *rj
	remotePhotos := rj.PhotoIDSet()
	for _, p := range local.Photos {
		if _, ok := remotePhotos[p.ID]; !ok {
			merged.Photos = append(merged.Photos, p)
		}
	}
	if merged.SignatureID == "" && local.SignatureID != "" {
		merged.SignatureID = local.SignatureID
	}
	merged.SyncStatus = models.SyncStatusPending
	return &merged
}

func (e *Engine) deleteLocal(ctx context.Context, local *models.Job, summary *Summary) error {
	// photos never uploaded would vanish with the job; keep their metadata
	for _, p := range local.Photos {
		if p.Uploaded() {
			continue
		}
		rec := &models.OrphanRecord{
			PhotoID:    p.ID,
			JobID:      local.ID,
			JobTitle:   local.Title,
			Reason:     "job deleted remotely",
			OrphanedAt: e.clock.Now().UTC(),
		}
		if err := e.orphans.Add(ctx, rec); err != nil {
			e.logger.Error(ctx, "failed to record orphan", "photo_id", p.ID, "error", err)
		}
	}
	if err := e.media.DeleteByJobID(ctx, local.ID); err != nil {
		return err
	}
	if err := e.actions.DeleteByJobID(ctx, local.ID); err != nil {
		return err
	}
	if err := e.jobs.Delete(ctx, local.ID); err != nil {
		return err
	}
	summary.Deleted++
	if local.HasPendingChanges() {
		e.record(ctx, models.ConflictRemoteDeleted, local.ID, models.ResolutionServerAccepted, local, nil)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, typ models.ConflictType, id string, res models.Resolution, local, rj *models.Job) {
	diag := fmt.Sprintf("local_updated_at=%s", local.UpdatedAt.Format(time.RFC3339))
	if rj != nil {
		diag += fmt.Sprintf(" remote_updated_at=%s", rj.UpdatedAt.Format(time.RFC3339))
	}
	event := &models.ConflictEvent{
		Type:        typ,
		ObjectType:  "job",
		ObjectID:    id,
		Resolution:  res,
		Timestamp:   e.clock.Now().UTC(),
		Diagnostics: diag,
	}
	if err := e.conflicts.Append(ctx, event); err != nil {
		e.logger.Error(ctx, "failed to append conflict event", "object_id", id, "error", err)
	}
}

func (e *Engine) notifySummary(ctx context.Context, s Summary) {
	n := s.Conflicts()
	if n == 0 || e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, "Sync conflicts resolved",
		fmt.Sprintf("%d conflict(s): %d updated from cloud, %d preserved, %d merged",
			n, s.FromCloud, s.Preserved, s.Merged))
}
