package scores

import (
	"github.com/angelmondragon/guildscore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
)

// ScoreRecord is the public view of one (member, guild) row.
type ScoreRecord struct {
	MemberID int64 `json:"member_id"`
	GuildID  int64 `json:"guild_id"`
	Score    int64 `json:"score"`
	Active   bool  `json:"active"`
}

// RankedRecord is a ScoreRecord positioned on its guild leaderboard.
type RankedRecord struct {
	ScoreRecord
	Rank int64 `json:"rank"`
}

// Page is one leaderboard slice. NextCursor is empty on the last page.
type Page struct {
	Items      []RankedRecord `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SortOrder selects the iteration order of ListActive.
type SortOrder int

const (
	// SortNone walks records by member id; no caller-visible order is promised.
	SortNone SortOrder = iota
	// SortScoreDesc walks by score descending, ties broken by member id ascending.
	SortScoreDesc
)

// ListOptions tunes ListActive.
type ListOptions struct {
	Sort      SortOrder
	BatchSize int
}

const (
	defaultBatchSize = 500
	maxBatchSize     = 5000
)

func (o ListOptions) batchSize() int {
	switch {
	case o.BatchSize <= 0:
		return defaultBatchSize
	case o.BatchSize > maxBatchSize:
		return maxBatchSize
	default:
		return o.BatchSize
	}
}

func recordFromModel(m models.Score) ScoreRecord {
	return ScoreRecord{
		MemberID: m.MemberID,
		GuildID:  m.GuildID,
		Score:    m.Score,
		Active:   bool(m.Active),
	}
}

// validateKey rejects identifiers outside the positive snowflake domain.
func validateKey(memberID, guildID int64) error {
	if memberID <= 0 || guildID <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidKey, "member and guild ids must be positive").
			WithDetails(map[string]int64{"member_id": memberID, "guild_id": guildID})
	}
	return nil
}

func validateGuild(guildID int64) error {
	if guildID <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidKey, "guild id must be positive").
			WithDetails(map[string]int64{"guild_id": guildID})
	}
	return nil
}
