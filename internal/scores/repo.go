package scores

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/angelmondragon/guildscore-backend/pkg/db"
	"github.com/angelmondragon/guildscore-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/guildscore-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/angelmondragon/guildscore-backend/pkg/metrics"
	"github.com/angelmondragon/guildscore-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	upsertSQL = `INSERT INTO scores (member_id, guild_id, score, active) VALUES (?, ?, ?, ?)
ON CONFLICT (member_id, guild_id) DO UPDATE SET score = excluded.score, active = excluded.active
RETURNING member_id, guild_id, score, active`

	activateSQL = `INSERT INTO scores (member_id, guild_id, score, active) VALUES (?, ?, 0, 1)
ON CONFLICT (member_id, guild_id) DO UPDATE SET active = 1
RETURNING member_id, guild_id, score, active`

	incrementSQL = `INSERT INTO scores (member_id, guild_id, score, active) VALUES (?, ?, ?, 1)
ON CONFLICT (member_id, guild_id) DO UPDATE SET score = scores.score + ?`

	setActiveSQL = `UPDATE scores SET active = ? WHERE member_id = ? AND guild_id = ?
RETURNING member_id, guild_id, score, active`

	rankedActiveSQL = `SELECT member_id, guild_id, score, active,
RANK() OVER (ORDER BY score DESC) AS leaderboard_rank
FROM scores WHERE guild_id = ? AND active = 1`
)

// Repository is the score store. Every mutation is a single SQL statement so
// per-key atomicity comes from the database row lock.
type Repository struct {
	db      *gorm.DB
	timeout time.Duration
	metrics *metrics.StoreMetrics
}

// Option customises a Repository.
type Option func(*Repository)

// WithMetrics records operation latency and outcomes.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// NewRepository binds the store to an open database client.
func NewRepository(client *db.Client, opts ...Option) *Repository {
	r := &Repository{db: client.DB(), timeout: client.OperationTimeout()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rankedRow struct {
	MemberID        int64
	GuildID         int64
	Score           int64
	Active          dbtypes.Flag
	LeaderboardRank int64
}

func (row rankedRow) toRecord() RankedRecord {
	return RankedRecord{
		ScoreRecord: ScoreRecord{
			MemberID: row.MemberID,
			GuildID:  row.GuildID,
			Score:    row.Score,
			Active:   bool(row.Active),
		},
		Rank: row.LeaderboardRank,
	}
}

func (r *Repository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

func (r *Repository) observe(op string, start time.Time, found bool, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		switch pkgerrors.As(err).Code() {
		case pkgerrors.CodeInvalidKey, pkgerrors.CodeValidation:
			outcome = metrics.OutcomeInvalidKey
		case pkgerrors.CodeIntegerOverflow:
			outcome = metrics.OutcomeOverflow
		default:
			outcome = metrics.OutcomeUnavailable
		}
	case !found:
		outcome = metrics.OutcomeNotFound
	}
	r.metrics.Observe(op, outcome, time.Since(start))
}

// storageError maps a driver failure onto the store taxonomy. Nothing is retried here.
func storageError(op string, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsNumericOverflow(err) {
		return pkgerrors.Wrap(pkgerrors.CodeIntegerOverflow, err, "score out of range")
	}
	if db.IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, op+": timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, op)
}

// Get returns the record for the key. found is false when no record exists.
func (r *Repository) Get(ctx context.Context, memberID, guildID int64) (rec ScoreRecord, found bool, err error) {
	defer func(start time.Time) { r.observe("get", start, found, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return ScoreRecord{}, false, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	var row models.Score
	err = conn.Where("member_id = ? AND guild_id = ?", memberID, guildID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScoreRecord{}, false, nil
	}
	if err != nil {
		return ScoreRecord{}, false, storageError("get score", err)
	}
	return recordFromModel(row), true, nil
}

// Upsert creates the record or overwrites both score and active in one statement.
func (r *Repository) Upsert(ctx context.Context, memberID, guildID, score int64, active bool) (rec ScoreRecord, err error) {
	defer func(start time.Time) { r.observe("upsert", start, true, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return ScoreRecord{}, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	var row models.Score
	res := conn.Raw(upsertSQL, memberID, guildID, score, dbtypes.Flag(active)).Scan(&row)
	if res.Error != nil {
		return ScoreRecord{}, storageError("upsert score", res.Error)
	}
	if res.RowsAffected == 0 {
		return ScoreRecord{}, pkgerrors.New(pkgerrors.CodeStorageUnavailable, "upsert returned no row")
	}
	return recordFromModel(row), nil
}

// IncrementScore adds delta to the stored score, creating the record with
// active=1 when it does not exist, and returns the new score. A result outside
// the int64 range fails with INTEGER_OVERFLOW and leaves the row untouched.
func (r *Repository) IncrementScore(ctx context.Context, memberID, guildID, delta int64) (score int64, err error) {
	defer func(start time.Time) { r.observe("increment", start, true, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return 0, err
	}

	query, args := incrementQuery(memberID, guildID, delta)

	conn, cancel := r.session(ctx)
	defer cancel()

	var newScore int64
	res := conn.Raw(query, args...).Scan(&newScore)
	if res.Error != nil {
		return 0, storageError("increment score", res.Error)
	}
	if res.RowsAffected == 0 {
		// the overflow guard rejected the update
		return 0, pkgerrors.New(pkgerrors.CodeIntegerOverflow, "score out of range").
			WithDetails(map[string]int64{"member_id": memberID, "guild_id": guildID, "delta": delta})
	}
	return newScore, nil
}

// incrementQuery guards the conflict branch so the addition can never leave
// the int64 range. SQLite would otherwise silently promote to REAL.
func incrementQuery(memberID, guildID, delta int64) (string, []any) {
	args := []any{memberID, guildID, delta, delta}
	query := incrementSQL
	switch {
	case delta > 0:
		query += " WHERE scores.score <= ?"
		args = append(args, int64(math.MaxInt64)-delta)
	case delta < 0:
		query += " WHERE scores.score >= ?"
		args = append(args, int64(math.MinInt64)-delta)
	}
	return query + "\nRETURNING score", args
}

// SetActive flips the active flag of an existing record without touching its
// score. found is false, and nothing is created, when the key does not exist.
func (r *Repository) SetActive(ctx context.Context, memberID, guildID int64, active bool) (rec ScoreRecord, found bool, err error) {
	defer func(start time.Time) { r.observe("set_active", start, found, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return ScoreRecord{}, false, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	var row models.Score
	res := conn.Raw(setActiveSQL, dbtypes.Flag(active), memberID, guildID).Scan(&row)
	if res.Error != nil {
		return ScoreRecord{}, false, storageError("set active", res.Error)
	}
	if res.RowsAffected == 0 {
		return ScoreRecord{}, false, nil
	}
	return recordFromModel(row), true, nil
}

// Delete removes the record and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, memberID, guildID int64) (existed bool, err error) {
	defer func(start time.Time) { r.observe("delete", start, true, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return false, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	res := conn.Where("member_id = ? AND guild_id = ?", memberID, guildID).Delete(&models.Score{})
	if res.Error != nil {
		return false, storageError("delete score", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Activate inserts a fresh active record or reactivates an existing one,
// keeping its score.
func (r *Repository) Activate(ctx context.Context, memberID, guildID int64) (rec ScoreRecord, err error) {
	defer func(start time.Time) { r.observe("activate", start, true, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return ScoreRecord{}, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	var row models.Score
	res := conn.Raw(activateSQL, memberID, guildID).Scan(&row)
	if res.Error != nil {
		return ScoreRecord{}, storageError("activate member", res.Error)
	}
	if res.RowsAffected == 0 {
		return ScoreRecord{}, pkgerrors.New(pkgerrors.CodeStorageUnavailable, "activate returned no row")
	}
	return recordFromModel(row), nil
}

// DeactivateGuild marks every active record of the guild inactive and returns
// how many changed.
func (r *Repository) DeactivateGuild(ctx context.Context, guildID int64) (changed int64, err error) {
	defer func(start time.Time) { r.observe("deactivate_guild", start, true, err) }(time.Now())
	if err = validateGuild(guildID); err != nil {
		return 0, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	res := conn.Model(&models.Score{}).
		Where("guild_id = ? AND active = ?", guildID, dbtypes.Flag(true)).
		Update("active", dbtypes.Flag(false))
	if res.Error != nil {
		return 0, storageError("deactivate guild", res.Error)
	}
	return res.RowsAffected, nil
}

// ListActive walks the guild's active records in keyset batches. Each call
// starts a new walk. Rows are read batch by batch, so a record changed
// mid-walk is seen in whichever state its batch observed.
func (r *Repository) ListActive(ctx context.Context, guildID int64, opts ListOptions) iter.Seq2[ScoreRecord, error] {
	return func(yield func(ScoreRecord, error) bool) {
		if err := validateGuild(guildID); err != nil {
			yield(ScoreRecord{}, err)
			return
		}

		size := opts.batchSize()
		var after *pagination.Cursor
		for {
			batch, err := r.activeBatch(ctx, guildID, opts.Sort, after, size)
			if err != nil {
				yield(ScoreRecord{}, err)
				return
			}
			for _, row := range batch {
				if !yield(recordFromModel(row), nil) {
					return
				}
			}
			if len(batch) < size {
				return
			}
			last := batch[len(batch)-1]
			after = &pagination.Cursor{Score: last.Score, MemberID: last.MemberID}
		}
	}
}

func (r *Repository) activeBatch(ctx context.Context, guildID int64, order SortOrder, after *pagination.Cursor, size int) (rows []models.Score, err error) {
	defer func(start time.Time) { r.observe("list_active", start, true, err) }(time.Now())

	conn, cancel := r.session(ctx)
	defer cancel()

	q := conn.Model(&models.Score{}).Where("guild_id = ? AND active = ?", guildID, dbtypes.Flag(true))
	switch order {
	case SortScoreDesc:
		if after != nil {
			q = q.Where("(score < ? OR (score = ? AND member_id > ?))", after.Score, after.Score, after.MemberID)
		}
		q = q.Order("score DESC").Order("member_id ASC")
	default:
		if after != nil {
			q = q.Where("member_id > ?", after.MemberID)
		}
		q = q.Order("member_id ASC")
	}

	if err = q.Limit(size).Find(&rows).Error; err != nil {
		return nil, storageError("list active scores", err)
	}
	return rows, nil
}

// Rank positions an active member on the guild leaderboard using competition
// ranking: tied scores share a rank and the next rank is skipped.
func (r *Repository) Rank(ctx context.Context, memberID, guildID int64) (rec RankedRecord, found bool, err error) {
	defer func(start time.Time) { r.observe("rank", start, found, err) }(time.Now())
	if err = validateKey(memberID, guildID); err != nil {
		return RankedRecord{}, false, err
	}

	conn, cancel := r.session(ctx)
	defer cancel()

	var row rankedRow
	query := fmt.Sprintf("SELECT * FROM (%s) ranked WHERE member_id = ?", rankedActiveSQL)
	res := conn.Raw(query, guildID, memberID).Scan(&row)
	if res.Error != nil {
		return RankedRecord{}, false, storageError("rank member", res.Error)
	}
	if res.RowsAffected == 0 {
		return RankedRecord{}, false, nil
	}
	return row.toRecord(), true, nil
}

// Top returns one page of the guild leaderboard, score descending and member
// id ascending, continuing after params.Cursor when set.
func (r *Repository) Top(ctx context.Context, guildID int64, params pagination.Params) (page Page, err error) {
	defer func(start time.Time) { r.observe("top", start, true, err) }(time.Now())
	if err = validateGuild(guildID); err != nil {
		return Page{}, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := fmt.Sprintf("SELECT * FROM (%s) ranked", rankedActiveSQL)
	args := []any{guildID}
	if cursor != nil {
		query += " WHERE (score < ? OR (score = ? AND member_id > ?))"
		args = append(args, cursor.Score, cursor.Score, cursor.MemberID)
	}
	query += " ORDER BY score DESC, member_id ASC LIMIT ?"
	args = append(args, pagination.LimitWithBuffer(limit))

	conn, cancel := r.session(ctx)
	defer cancel()

	var rows []rankedRow
	if err = conn.Raw(query, args...).Scan(&rows).Error; err != nil {
		return Page{}, storageError("leaderboard", err)
	}

	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Score: last.Score, MemberID: last.MemberID})
	}
	page.Items = make([]RankedRecord, 0, len(rows))
	for _, row := range rows {
		page.Items = append(page.Items, row.toRecord())
	}
	return page, nil
}
