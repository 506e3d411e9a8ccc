package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

var (
	idRegexp = regexp.MustCompile(`^[a-f\d]{8}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{12}$`)
)

type ArchiveService interface {
	BeforeArchive(ctx context.Context, dstNodeID, initiatorID string) (*entity.ArchiveJob, error)
	Archive(ctx context.Context, jobID string) error
	Job(ctx context.Context, jobID string) (*entity.ArchiveJob, error)
	HandleCopyResult(ctx context.Context, jobID, target string, ok bool, errs []string) error
}

type NodeSeeder interface {
	Save(ctx context.Context, n *entity.Node) error
	SaveUser(ctx context.Context, u *entity.User) error
}

type archiveRequest struct {
	NodeID      string `json:"node_id"`
	InitiatorID string `json:"initiator_id"`
}

// NewArchiveHandler starts an archive: it creates the job for the given
// registration node and schedules the pipeline.
func NewArchiveHandler(srv ArchiveService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ArchiveHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req archiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}
		if req.NodeID == "" || req.InitiatorID == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		job, err := srv.BeforeArchive(r.Context(), req.NodeID, req.InitiatorID)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrNodeNotFoundError), errors.Is(err, common.ErrUserNotFoundError):
				http.Error(w, "Cannot find node or user", http.StatusNotFound)
			default:
				log.Error("Cannot create archive job", slog.Any("error", err))
				http.Error(w, "Cannot create archive job", http.StatusInternalServerError)
			}

			return
		}

		if err := srv.Archive(r.Context(), job.ID); err != nil {
			log.Error("Cannot start archive job", slog.String("job_id", job.ID), slog.Any("error", err))
			http.Error(w, "Cannot start archive job", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(job); err != nil {
			log.Error("Cannot encode job", slog.Any("error", err))
		}
	}
}

// NewJobHandler reports the state of one archive job.
func NewJobHandler(srv ArchiveService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "JobHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		job, err := srv.Job(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFoundError):
				http.Error(w, "Cannot find job", http.StatusNotFound)
			default:
				http.Error(w, "Cannot get job", http.StatusInternalServerError)
			}

			return
		}

		out := struct {
			*entity.ArchiveJob
			Status entity.TargetStatus `json:"status"`
		}{ArchiveJob: job, Status: job.Status()}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

type copyHookRequest struct {
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// NewCopyHookHandler receives the asynchronous completion callbacks of the
// external file-copy service, one per submitted copy request.
func NewCopyHookHandler(srv ArchiveService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CopyHookHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		target := r.PathValue("target")
		if !idRegexp.MatchString(id) || target == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		var req copyHookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		err := srv.HandleCopyResult(r.Context(), id, target, req.Status == "success", req.Errors)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFoundError), errors.Is(err, common.ErrTargetNotFoundError):
				http.Error(w, "Cannot find job target", http.StatusNotFound)
			default:
				log.Error("Cannot handle copy result", slog.String("job_id", id), slog.Any("error", err))
				http.Error(w, "Cannot handle copy result", http.StatusInternalServerError)
			}

			return
		}

		w.Write([]byte("done"))
	}
}

// NewNodeSeedHandler stores a node record. The node graph normally belongs
// to the surrounding platform; this endpoint feeds the in-memory store in
// development setups.
func NewNodeSeedHandler(store NodeSeeder, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "NodeSeedHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var n entity.Node
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil || n.ID == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if err := store.Save(r.Context(), &n); err != nil {
			log.Error("Cannot save node", slog.Any("error", err))
			http.Error(w, "Cannot save node", http.StatusInternalServerError)

			return
		}

		w.Write([]byte("done"))
	}
}

// NewUserSeedHandler stores a user record, mirroring NewNodeSeedHandler.
func NewUserSeedHandler(store NodeSeeder, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "UserSeedHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var u entity.User
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.ID == "" {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if err := store.SaveUser(r.Context(), &u); err != nil {
			log.Error("Cannot save user", slog.Any("error", err))
			http.Error(w, "Cannot save user", http.StatusInternalServerError)

			return
		}

		w.Write([]byte("done"))
	}
}
