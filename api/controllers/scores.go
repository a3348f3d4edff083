package controllers

import (
	"context"
	"iter"
	"net/http"
	"strings"

	"github.com/angelmondragon/guildscore-backend/api/responses"
	"github.com/angelmondragon/guildscore-backend/api/validators"
	"github.com/angelmondragon/guildscore-backend/internal/scores"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/angelmondragon/guildscore-backend/pkg/levels"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
	"github.com/angelmondragon/guildscore-backend/pkg/pagination"
)

// ScoreStore is the score store surface exposed over HTTP.
type ScoreStore interface {
	Get(ctx context.Context, memberID, guildID int64) (scores.ScoreRecord, bool, error)
	Upsert(ctx context.Context, memberID, guildID, score int64, active bool) (scores.ScoreRecord, error)
	IncrementScore(ctx context.Context, memberID, guildID, delta int64) (int64, error)
	SetActive(ctx context.Context, memberID, guildID int64, active bool) (scores.ScoreRecord, bool, error)
	Delete(ctx context.Context, memberID, guildID int64) (bool, error)
	ListActive(ctx context.Context, guildID int64, opts scores.ListOptions) iter.Seq2[scores.ScoreRecord, error]
	Rank(ctx context.Context, memberID, guildID int64) (scores.RankedRecord, bool, error)
	Top(ctx context.Context, guildID int64, params pagination.Params) (scores.Page, error)
}

type upsertRequest struct {
	Score  *int64 `json:"score" validate:"required"`
	Active *bool  `json:"active" validate:"required"`
}

type incrementRequest struct {
	Delta *int64 `json:"delta" validate:"required"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type rankResponse struct {
	scores.RankedRecord
	Display  string          `json:"display"`
	Progress levels.Progress `json:"progress"`
}

func memberKey(r *http.Request) (guildID, memberID int64, err error) {
	if guildID, err = validators.ParsePathID(r, "guildID"); err != nil {
		return 0, 0, err
	}
	if memberID, err = validators.ParsePathID(r, "memberID"); err != nil {
		return 0, 0, err
	}
	return guildID, memberID, nil
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "score record not found")
}

// ScoreGet returns one record or 404.
func ScoreGet(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, found, err := store.Get(r.Context(), memberID, guildID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound())
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

// ScorePut overwrites score and active flag, creating the record if needed.
func ScorePut(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req upsertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := store.Upsert(r.Context(), memberID, guildID, *req.Score, *req.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

// ScoreIncrement adds delta atomically and returns the new score.
func ScoreIncrement(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req incrementRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		score, err := store.IncrementScore(r.Context(), memberID, guildID, *req.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"score": score})
	}
}

// ScoreSetActive flips the active flag of an existing record.
func ScoreSetActive(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, found, err := store.SetActive(r.Context(), memberID, guildID, *req.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound())
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

func ScoreDelete(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		existed, err := store.Delete(r.Context(), memberID, guildID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"existed": existed})
	}
}

// ScoreRank returns the member's leaderboard position and level progress.
func ScoreRank(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, memberID, err := memberKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, found, err := store.Rank(r.Context(), memberID, guildID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, notFound())
			return
		}
		responses.WriteSuccess(w, rankResponse{
			RankedRecord: rec,
			Display:      levels.Humanize(float64(rec.Score)),
			Progress:     levels.For(rec.Score),
		})
	}
}

// Leaderboard pages through active records by score.
func Leaderboard(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, err := validators.ParsePathID(r, "guildID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := store.Top(r.Context(), guildID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ActiveListing streams every active record of the guild as NDJSON.
func ActiveListing(store ScoreStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, err := validators.ParsePathID(r, "guildID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sort, err := validators.ParseQueryChoice(r, "sort", "score")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		opts := scores.ListOptions{}
		if sort == "score" {
			opts.Sort = scores.SortScoreDesc
		}
		if opts.BatchSize, err = validators.ParseQueryInt(r, "batch_size", 0, 0, 5000); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.StreamNDJSON(r.Context(), logg, w, store.ListActive(r.Context(), guildID, opts))
	}
}
