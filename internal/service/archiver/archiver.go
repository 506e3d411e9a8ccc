// Package archiver implements the registration archiving pipeline: stat the
// source node's addons, gate on aggregate size, copy each addon's content
// into the registration's archive provider, and finally rewrite the file
// references frozen inside the registration metadata.
//
// Every stage is a queue message processed by a worker. Stages share no
// memory; all shared state lives in the job record, and each target's status
// is written only by the stage responsible for it. No stage retries: a
// failed stage fails the job through the failure handler, since retrying a
// copy against a remote service without idempotency keys risks duplicate
// files.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jgivc/regarchive/internal/adapter/copyclient"
	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/config"
	"github.com/jgivc/regarchive/internal/entity"
	"github.com/jgivc/regarchive/internal/queue"
)

type JobRepository interface {
	Save(ctx context.Context, j *entity.ArchiveJob) error
	Get(ctx context.Context, id string) (*entity.ArchiveJob, error)
	UpdateTarget(ctx context.Context, jobID, target string, status entity.TargetStatus, errs []string) (*entity.ArchiveJob, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkSent(ctx context.Context, jobID string) (bool, error)
	InitBarrier(ctx context.Context, jobID string, n int) error
	LowerBarrier(ctx context.Context, jobID string) (int64, error)
	PushStatResult(ctx context.Context, jobID string, res *entity.AggregateStatResult) error
	StatResults(ctx context.Context, jobID string) ([]*entity.AggregateStatResult, error)
}

type NodeStore interface {
	Node(ctx context.Context, id string) (*entity.Node, error)
	Save(ctx context.Context, n *entity.Node) error
	Children(ctx context.Context, id string) ([]*entity.Node, error)
	User(ctx context.Context, id string) (*entity.User, error)
	LinkAddon(ctx context.Context, nodeID, name string) error
	DeleteRegistrationTree(ctx context.Context, rootID string) error
	AskSanction(ctx context.Context, nodeID string, audience []entity.Contributor) error
	RejectSanction(ctx context.Context, nodeID string) error
}

type AddonClient interface {
	FileTree(ctx context.Context, node *entity.Node, user *entity.User, provider, revision string) (*entity.FileTree, error)
}

type CopyClient interface {
	Copy(ctx context.Context, req copyclient.Request) error
}

type Mailer interface {
	NotifyFailure(ctx context.Context, status entity.TargetStatus, user *entity.User, src *entity.Node, payload any)
}

type Service struct {
	cfg     *config.Config
	jobs    JobRepository
	nodes   NodeStore
	addons  *entity.Registry
	client  AddonClient
	copier  CopyClient
	pub     queue.Publisher
	mailer  Mailer
	signals *Signals
	log     *slog.Logger
}

func New(cfg *config.Config, jobs JobRepository, nodes NodeStore, addons *entity.Registry,
	client AddonClient, copier CopyClient, pub queue.Publisher, mailer Mailer,
	signals *Signals, log *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		jobs:    jobs,
		nodes:   nodes,
		addons:  addons,
		client:  client,
		copier:  copier,
		pub:     pub,
		mailer:  mailer,
		signals: signals,
		log:     log.With(slog.String("service", "archiver")),
	}
}

// BeforeArchive provisions the archive provider on the new registration and
// creates the job. The target set is snapshotted from the source node's
// addons here; addon changes on the source after this point do not affect
// the job.
func (s *Service) BeforeArchive(ctx context.Context, dstNodeID, initiatorID string) (*entity.ArchiveJob, error) {
	dst, err := s.nodes.Node(ctx, dstNodeID)
	if err != nil {
		return nil, fmt.Errorf("cannot load registration node %s: %w", dstNodeID, err)
	}
	if dst.RegisteredFromID == "" {
		return nil, fmt.Errorf("node %s is not a registration", dstNodeID)
	}

	if _, err := s.nodes.User(ctx, initiatorID); err != nil {
		return nil, fmt.Errorf("cannot load initiator %s: %w", initiatorID, err)
	}

	if err := s.nodes.LinkAddon(ctx, dst.ID, s.cfg.ArchiveProvider); err != nil {
		return nil, fmt.Errorf("cannot link archive provider: %w", err)
	}

	src, err := s.nodes.Node(ctx, dst.RegisteredFromID)
	if err != nil {
		return nil, fmt.Errorf("cannot load source node: %w", err)
	}

	job := &entity.ArchiveJob{
		ID:          uuid.New().String(),
		SrcNodeID:   src.ID,
		DstNodeID:   dst.ID,
		InitiatorID: initiatorID,
		CreatedAt:   time.Now(),
	}

	for _, name := range src.Addons {
		targets, err := s.addons.Targets(name)
		if err != nil {
			s.log.Warn("Skipping unknown addon", slog.String("addon", name), slog.String("node_id", src.ID))

			continue
		}

		for _, t := range targets {
			job.Targets = append(job.Targets, entity.ArchiveTarget{Name: t, Status: entity.StatusPending})
		}
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("cannot save archive job: %w", err)
	}

	dst.ArchiveStatus = entity.StatusPending
	if err := s.nodes.Save(ctx, dst); err != nil {
		return nil, fmt.Errorf("cannot save registration node: %w", err)
	}

	s.log.Info("Archive job created",
		slog.String("job_id", job.ID),
		slog.String("src", src.ID),
		slog.String("dst", dst.ID),
		slog.Int("targets", len(job.Targets)),
	)

	return job, nil
}

// Archive starts the pipeline: one stat message per target, behind a fan-in
// barrier sized to the fan-out. A job with no targets skips straight to the
// size gate, which completes it. A scheduling failure here is fatal and
// surfaces to the caller.
func (s *Service) Archive(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cannot load job %s: %w", jobID, err)
	}

	if err := s.jobs.InitBarrier(ctx, job.ID, len(job.Targets)); err != nil {
		return err
	}

	s.log.Info("Received archive task",
		slog.String("job_id", job.ID),
		slog.String("src", job.SrcNodeID),
		slog.String("dst", job.DstNodeID),
	)

	if len(job.Targets) == 0 {
		return s.pub.Publish(ctx, queue.Message{Kind: queue.KindArchiveNode, JobID: job.ID})
	}

	for _, t := range job.Targets {
		if err := s.pub.Publish(ctx, queue.Message{Kind: queue.KindStatAddon, JobID: job.ID, Target: t.Name}); err != nil {
			return fmt.Errorf("cannot schedule stat for target %s: %w", t.Name, err)
		}
	}

	return nil
}

// Job returns the current job record.
func (s *Service) Job(ctx context.Context, jobID string) (*entity.ArchiveJob, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *Service) Signals() *Signals {
	return s.signals
}

// StatAddon collects the file tree of one target and folds it into a stat
// tree. Whatever happens, the fan-in barrier is lowered so sibling results
// are not held up; the worker that lowers it to zero schedules the size
// gate.
func (s *Service) StatAddon(ctx context.Context, jobID, target string) error {
	job, src, _, user, err := s.jobInfo(ctx, jobID)
	if err != nil {
		return err
	}

	addon, rev, err := s.addons.Resolve(target)
	if err != nil {
		return err
	}

	revision := ""
	if rev != nil {
		revision = rev.Selector
	}

	tree, err := s.client.FileTree(ctx, src, user, addon.Name, revision)
	if err != nil {
		var netErr *common.NetworkError
		if errors.As(err, &netErr) {
			if _, uerr := s.jobs.UpdateTarget(ctx, job.ID, target, entity.StatusNetworkError, netErr.Errs); uerr != nil {
				s.log.Error("Cannot record target failure", slog.String("job_id", job.ID), slog.Any("error", uerr))
			}
		}

		if berr := s.lowerBarrier(ctx, job.ID); berr != nil {
			s.log.Error("Cannot lower stat barrier", slog.String("job_id", job.ID), slog.Any("error", berr))
		}

		return fmt.Errorf("cannot stat target %s: %w", target, err)
	}

	result := entity.NewAggregateStatResult(
		src.ID+":"+target,
		target,
		[]*entity.AggregateStatResult{entity.AggregateFileTree(tree)},
		nil,
	)

	s.log.Info("Stat collected",
		slog.String("job_id", job.ID),
		slog.String("target", target),
		slog.Int64("disk_usage", result.DiskUsage),
		slog.Int64("num_files", result.NumFiles),
	)

	if err := s.jobs.PushStatResult(ctx, job.ID, result); err != nil {
		return err
	}

	return s.lowerBarrier(ctx, job.ID)
}

func (s *Service) lowerBarrier(ctx context.Context, jobID string) error {
	left, err := s.jobs.LowerBarrier(ctx, jobID)
	if err != nil {
		return err
	}

	if left > 0 {
		return nil
	}

	return s.pub.Publish(ctx, queue.Message{Kind: queue.KindArchiveNode, JobID: jobID})
}

// ArchiveNode is the size gate and copy fan-out. It runs once, after every
// stat task has returned.
func (s *Service) ArchiveNode(ctx context.Context, jobID string) error {
	job, _, dst, user, err := s.jobInfo(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status().Failed() {
		// A stat task already failed the job; its results are ignored.
		s.log.Info("Skipping archive of failed job", slog.String("job_id", job.ID))

		return nil
	}

	results, err := s.jobs.StatResults(ctx, job.ID)
	if err != nil {
		return err
	}

	total := entity.NewAggregateStatResult(dst.ID, dst.Title, results, nil)

	s.log.Info("Archiving node",
		slog.String("job_id", job.ID),
		slog.String("dst", dst.ID),
		slog.Int64("disk_usage", total.DiskUsage),
	)

	if !user.HasSystemTag(s.cfg.NoArchiveLimitTag) && total.DiskUsage > s.cfg.MaxArchiveSize {
		return &common.SizeExceededError{
			Usage:  total.DiskUsage,
			Limit:  s.cfg.MaxArchiveSize,
			Result: total,
		}
	}

	if len(results) == 0 {
		if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
			return err
		}

		return s.archiveCallback(ctx, job.ID)
	}

	for _, res := range results {
		if res.NumFiles == 0 {
			// Nothing to copy.
			if _, err := s.jobs.UpdateTarget(ctx, job.ID, res.TargetName, entity.StatusSuccess, nil); err != nil {
				return err
			}

			continue
		}

		msg := queue.Message{Kind: queue.KindArchiveAddon, JobID: job.ID, Target: res.TargetName}
		if err := s.pub.Publish(ctx, msg); err != nil {
			return fmt.Errorf("cannot schedule copy for target %s: %w", res.TargetName, err)
		}
	}

	return s.archiveCallback(ctx, job.ID)
}

// ArchiveAddon submits the copy request for one target and returns without
// waiting: the copy service confirms completion through the copy hook.
func (s *Service) ArchiveAddon(ctx context.Context, jobID, target string) error {
	job, src, dst, user, err := s.jobInfo(ctx, jobID)
	if err != nil {
		return err
	}

	addon, rev, err := s.addons.Resolve(target)
	if err != nil {
		return err
	}

	folder := addon.ArchiveFolderName
	revision := ""
	if rev != nil {
		folder += rev.FolderSuffix
		revision = rev.Selector
	}

	s.log.Info("Archiving addon",
		slog.String("job_id", job.ID),
		slog.String("target", target),
		slog.String("src", src.ID),
	)

	req := copyclient.NewRequest(src.ID, dst.ID, addon.Name, s.cfg.ArchiveProvider, user.Cookie, folder, revision)

	return s.copier.Copy(ctx, req)
}

// HandleCopyResult is invoked by the copy hook when the external service
// reports one finished copy. Duplicate reports for an already terminal
// target are ignored.
func (s *Service) HandleCopyResult(ctx context.Context, jobID, target string, ok bool, errs []string) error {
	status := entity.StatusSuccess
	if !ok {
		status = entity.StatusNetworkError
	}

	if _, err := s.jobs.UpdateTarget(ctx, jobID, target, status, errs); err != nil {
		if errors.Is(err, common.ErrStatusNotPendingError) {
			s.log.Info("Ignoring duplicate copy result",
				slog.String("job_id", jobID),
				slog.String("target", target),
			)

			return nil
		}

		return err
	}

	if !ok {
		s.HandleFailure(ctx, jobID, &common.NetworkError{Target: target, Errs: errs})

		return nil
	}

	return s.archiveCallback(ctx, jobID)
}

// archiveCallback advances the pipeline once every target has reached a
// terminal status: all success schedules finalization, and anything else is
// left to the failure handler that already ran.
func (s *Service) archiveCallback(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Sent {
		return nil
	}

	if job.Status() != entity.StatusSuccess {
		return nil
	}

	return s.pub.Publish(ctx, queue.Message{Kind: queue.KindArchiveSuccess, JobID: job.ID})
}

// ArchiveSuccess finalizes the job: it rewrites file references frozen in
// the registration metadata to point at the archived copies, marks the job
// sent, and asks the registration's sanction for approval. The sent claim
// makes redundant completion signals a no-op.
func (s *Service) ArchiveSuccess(ctx context.Context, jobID string) error {
	claimed, err := s.jobs.MarkSent(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		s.log.Info("Job already finalized", slog.String("job_id", jobID))

		return nil
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	dst, err := s.nodes.Node(ctx, job.DstNodeID)
	if err != nil {
		return &common.StateError{Info: "finalizing job " + jobID, Err: err}
	}

	if err := s.rewriteFileRefs(ctx, dst); err != nil {
		return err
	}

	dst.ArchiveStatus = entity.StatusSuccess
	if err := s.nodes.Save(ctx, dst); err != nil {
		return err
	}

	if err := s.nodes.AskSanction(ctx, dst.ID, dst.ActiveContributors()); err != nil {
		return err
	}

	s.signals.emitSuccess(job.ID)

	s.log.Info("Archive finalized", slog.String("job_id", job.ID), slog.String("dst", dst.ID))

	return nil
}

// rewriteFileRefs resolves every embedded file reference in schemas that
// support file-picker questions. The index over the registration tree is
// built once and shared across all references.
func (s *Service) rewriteFileRefs(ctx context.Context, dst *entity.Node) error {
	var idx *fileIndex

	for _, schema := range dst.Schemas {
		if !schema.FileQuestions {
			continue
		}

		meta, ok := dst.RegisteredMeta[schema.ID]
		if !ok {
			continue
		}

		if idx == nil {
			var err error
			if idx, err = s.buildFileIndex(ctx, dst); err != nil {
				return err
			}
		}

		for _, q := range meta {
			idx.rewriteQuestion(q)
		}
	}

	return nil
}

// HandleFailure is the single translation point from a stage error to a
// persisted failure kind. It fires the failure signal, notifies by mail,
// rejects the pending sanction, and deletes the partial registration tree so
// no broken registration stays visible.
func (s *Service) HandleFailure(ctx context.Context, jobID string, cause error) {
	job, src, dst, user, err := s.jobInfo(ctx, jobID)
	if err != nil {
		s.log.Error("Cannot handle failure", slog.String("job_id", jobID), slog.Any("cause", cause), slog.Any("error", err))

		return
	}

	if dst.ArchiveStatus.Failed() {
		// Already captured.
		return
	}

	kind, payload := s.classify(job, cause)

	s.log.Error("Archive job failed",
		slog.String("job_id", job.ID),
		slog.String("kind", string(kind)),
		slog.Any("cause", cause),
	)

	dst.ArchiveStatus = kind
	if err := s.nodes.Save(ctx, dst); err != nil {
		s.log.Error("Cannot persist failure status", slog.String("job_id", job.ID), slog.Any("error", err))
	}

	s.signals.emitFailure(job.ID, kind, payload)
	s.mailer.NotifyFailure(ctx, kind, user, src, payload)

	if err := s.nodes.RejectSanction(ctx, dst.ID); err != nil {
		s.log.Error("Cannot reject sanction", slog.String("node_id", dst.ID), slog.Any("error", err))
	}

	if err := s.nodes.DeleteRegistrationTree(ctx, dst.ID); err != nil {
		s.log.Error("Cannot delete registration tree", slog.String("node_id", dst.ID), slog.Any("error", err))
	}
}

// classify maps a stage error onto the failure taxonomy, in order:
// size-exceeded, network-error, file-not-found, uncaught.
func (s *Service) classify(job *entity.ArchiveJob, cause error) (entity.TargetStatus, any) {
	var (
		sizeErr     *common.SizeExceededError
		netErr      *common.NetworkError
		notFoundErr *common.FileNotFoundError
	)

	switch {
	case errors.As(cause, &sizeErr):
		return entity.StatusSizeExceeded, sizeErr.Result
	case errors.As(cause, &netErr):
		return entity.StatusNetworkError, job.TargetInfo()
	case errors.As(cause, &notFoundErr):
		return entity.StatusFileNotFound, map[string]string{
			"file_name": notFoundErr.FileName,
			"node_id":   notFoundErr.NodeID,
		}
	default:
		return entity.StatusUncaughtError, []string{cause.Error()}
	}
}

func (s *Service) jobInfo(ctx context.Context, jobID string) (*entity.ArchiveJob, *entity.Node, *entity.Node, *entity.User, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, nil, nil, nil, &common.StateError{Info: "loading job " + jobID, Err: err}
	}

	src, err := s.nodes.Node(ctx, job.SrcNodeID)
	if err != nil {
		return nil, nil, nil, nil, &common.StateError{Info: "loading source node " + job.SrcNodeID, Err: err}
	}

	dst, err := s.nodes.Node(ctx, job.DstNodeID)
	if err != nil {
		return nil, nil, nil, nil, &common.StateError{Info: "loading destination node " + job.DstNodeID, Err: err}
	}

	user, err := s.nodes.User(ctx, job.InitiatorID)
	if err != nil {
		return nil, nil, nil, nil, &common.StateError{Info: "loading initiator " + job.InitiatorID, Err: err}
	}

	return job, src, dst, user, nil
}
