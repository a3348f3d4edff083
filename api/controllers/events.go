package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/guildscore-backend/api/responses"
	"github.com/angelmondragon/guildscore-backend/api/validators"
	"github.com/angelmondragon/guildscore-backend/internal/activity"
	"github.com/angelmondragon/guildscore-backend/internal/scores"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
)

// ActivityService handles community events.
type ActivityService interface {
	MemberJoined(ctx context.Context, guildID, memberID int64, bot bool) (scores.ScoreRecord, bool, error)
	MemberLeft(ctx context.Context, guildID, memberID int64) (bool, error)
	MessageCreated(ctx context.Context, guildID, memberID int64, bot bool) (activity.MessageResult, error)
	GuildJoined(ctx context.Context, guildID int64, members []int64) (activity.SyncResult, error)
	GuildLeft(ctx context.Context, guildID int64) (int64, error)
	SyncGuild(ctx context.Context, guildID int64, present []int64) (activity.SyncResult, error)
}

type memberEventRequest struct {
	MemberID *int64 `json:"member_id" validate:"required,gt=0"`
	Bot      bool   `json:"bot"`
}

type membersEventRequest struct {
	Members []int64 `json:"members" validate:"required,max=250000,dive,gt=0"`
}

type memberJoinedResponse struct {
	Applied bool                `json:"applied"`
	Record  *scores.ScoreRecord `json:"record,omitempty"`
}

// decodeGuildEvent parses the guild id and the body shared by every event route.
func decodeGuildEvent(r *http.Request, dest any) (int64, error) {
	guildID, err := validators.ParsePathID(r, "guildID")
	if err != nil {
		return 0, err
	}
	if dest == nil {
		return guildID, nil
	}
	if err := validators.DecodeJSONBody(r, dest); err != nil {
		return 0, err
	}
	return guildID, nil
}

func EventMemberJoined(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberEventRequest
		guildID, err := decodeGuildEvent(r, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, applied, err := svc.MemberJoined(r.Context(), guildID, *req.MemberID, req.Bot)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := memberJoinedResponse{Applied: applied}
		if applied {
			resp.Record = &rec
		}
		responses.WriteSuccess(w, resp)
	}
}

func EventMemberLeft(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberEventRequest
		guildID, err := decodeGuildEvent(r, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, err := svc.MemberLeft(r.Context(), guildID, *req.MemberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"found": found})
	}
}

func EventMessage(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberEventRequest
		guildID, err := decodeGuildEvent(r, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.MessageCreated(r.Context(), guildID, *req.MemberID, req.Bot)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func EventGuildJoined(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membersEventRequest
		guildID, err := decodeGuildEvent(r, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.GuildJoined(r.Context(), guildID, req.Members)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func EventGuildLeft(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, err := decodeGuildEvent(r, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		changed, err := svc.GuildLeft(r.Context(), guildID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"deactivated": changed})
	}
}

// EventSync reconciles stored membership with the full member list in the body.
func EventSync(svc ActivityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membersEventRequest
		guildID, err := decodeGuildEvent(r, &req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.SyncGuild(r.Context(), guildID, req.Members)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
