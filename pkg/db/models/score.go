package models

import (
	dbtypes "github.com/angelmondragon/guildscore-backend/pkg/db/types"
)

// ScoreTable is the single durable table of the score store.
const ScoreTable = "scores"

// Score is the persisted (member_id, guild_id) -> (score, active) row.
type Score struct {
	MemberID int64        `gorm:"column:member_id;primaryKey;autoIncrement:false"`
	GuildID  int64        `gorm:"column:guild_id;primaryKey;autoIncrement:false"`
	Score    int64        `gorm:"column:score;not null;default:0"`
	Active   dbtypes.Flag `gorm:"column:active;type:integer;not null;default:1"`
}

func (Score) TableName() string {
	return ScoreTable
}
