package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Database struct
type Database struct {
	db *gorm.DB
	sync.RWMutex
}

// User is a registered player.
type User struct {
	UserID    int64 `gorm:"primaryKey"`
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats holds lifetime answer counters of a user.
type Stats struct {
	UserID    int64 `gorm:"primaryKey"`
	Correct   int
	Total     int
	Streak    int
	UpdatedAt time.Time
}

// TableName makes `Stats` rows go into `stats`, not a mangled plural.
func (Stats) TableName() string {
	return "stats"
}

// LeaderboardEntry holds per-user counters for ranking, with the time
// of the last graded answer for windowing.
type LeaderboardEntry struct {
	UserID     int64 `gorm:"primaryKey"`
	Correct    int
	Total      int
	AnsweredAt time.Time `gorm:"index"`
}

// Session is the pending question of a user. Painting fields are copied
// in so grading stays correct even when the dataset file changes.
type Session struct {
	UserID        int64 `gorm:"primaryKey"`
	PaintingIndex int
	Title         string
	Artist        string
	Year          string
	Museum        string
	ImageURL      string
	Note          string
	AskedAt       time.Time
}

// Deck tracks which dataset indices a user still has to see. Indices are
// stored as JSON arrays and drawn from the tail of `remaining`; both
// lists start over when the deck refills.
type Deck struct {
	UserID    int64 `gorm:"primaryKey"`
	Remaining string
	Shown     string
	UpdatedAt time.Time
}

// DailyQuota counts questions served to a user on one UTC day.
type DailyQuota struct {
	UserID int64  `gorm:"primaryKey"`
	Day    string `gorm:"primaryKey"`
	Used   int
}

// Log struct
type Log struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	Type      string
	Message   string
	CreatedAt time.Time
}

// Chat is a chat to broadcast messages to.
type Chat struct {
	ChatID    int64 `gorm:"primaryKey"`
	UserID    int64
	CreatedAt time.Time
}

// TopEntry is one ranked row of the leaderboard.
type TopEntry struct {
	UserID    int64
	Correct   int
	Total     int
	Username  string
	FirstName string
	LastName  string
}

// OpenDB opens a local sqlite database file, migrating tables when needed.
func OpenDB(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&User{},
		&Stats{},
		&LeaderboardEntry{},
		&Session{},
		&Deck{},
		&DailyQuota{},
		&Log{},
		&Chat{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database.
func (d *Database) Close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// EnsureUser registers a user and an empty stats row for them. Repeated
// calls refresh the user's names.
func (d *Database) EnsureUser(userID int64, username, firstName, lastName string) error {
	d.Lock()
	defer d.Unlock()

	return d.db.Transaction(func(tx *gorm.DB) error {
		user := User{
			UserID:    userID,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "updated_at"}),
		}).Create(&user).Error; err != nil {
			return err
		}

		stats := Stats{UserID: userID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error
	})
}

// NextPaintingIndex pops the next dataset index from the user's deck.
// An exhausted or out-of-range deck is refilled with all indices first.
func (d *Database) NextPaintingIndex(userID int64, paintingCount int) (int, error) {
	if paintingCount <= 0 {
		return 0, fmt.Errorf("invalid painting count: %d", paintingCount)
	}

	d.Lock()
	defer d.Unlock()

	index := 0
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var deck Deck
		if err := tx.Where("user_id = ?", userID).First(&deck).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		remaining := decodeIndices(deck.Remaining)
		shown := decodeIndices(deck.Shown)

		if len(remaining) == 0 || !indicesInRange(remaining, paintingCount) {
			remaining = make([]int, paintingCount)
			for i := range remaining {
				remaining[i] = i
			}
			shown = nil
		}

		index = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		shown = append(shown, index)

		deck = Deck{
			UserID:    userID,
			Remaining: encodeIndices(remaining),
			Shown:     encodeIndices(shown),
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&deck).Error
	})

	return index, err
}

// SaveSession stores the pending question of a user, replacing any previous one.
func (d *Database) SaveSession(userID int64, paintingIndex int, painting Painting, askedAt time.Time) error {
	d.Lock()
	defer d.Unlock()

	session := Session{
		UserID:        userID,
		PaintingIndex: paintingIndex,
		Title:         painting.Title,
		Artist:        painting.Artist,
		Year:          painting.Year,
		Museum:        painting.Museum,
		ImageURL:      painting.ImageURL,
		Note:          painting.Note,
		AskedAt:       askedAt,
	}
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&session).Error
}

// GetSession fetches the pending question of a user.
func (d *Database) GetSession(userID int64) (Session, error) {
	d.RLock()
	defer d.RUnlock()

	var session Session
	err := d.db.Where("user_id = ?", userID).First(&session).Error
	return session, err
}

// quotaDay formats a time as the UTC day key of quota rows.
func quotaDay(t time.Time) string {
	return t.UTC().Format("20060102")
}

// QuotaUsedToday returns how many questions were served to a user today (UTC).
func (d *Database) QuotaUsedToday(userID int64, now time.Time) (int, error) {
	d.RLock()
	defer d.RUnlock()

	var quota DailyQuota
	if err := d.db.Where("user_id = ? and day = ?", userID, quotaDay(now)).First(&quota).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return quota.Used, nil
}

// IncQuotaUsedToday increments today's quota usage of a user.
func (d *Database) IncQuotaUsedToday(userID int64, now time.Time) error {
	d.Lock()
	defer d.Unlock()

	quota := DailyQuota{
		UserID: userID,
		Day:    quotaDay(now),
		Used:   1,
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{"used": gorm.Expr("used + 1")}),
	}).Create(&quota).Error
}

// RecordAnswer updates lifetime stats and the leaderboard entry of a user
// for one graded answer. A wrong answer resets the streak.
func (d *Database) RecordAnswer(userID int64, correct bool, answeredAt time.Time) error {
	d.Lock()
	defer d.Unlock()

	return d.db.Transaction(func(tx *gorm.DB) error {
		var stats Stats
		if err := tx.Where("user_id = ?", userID).First(&stats).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			stats = Stats{UserID: userID}
		}
		stats.Total++
		if correct {
			stats.Correct++
			stats.Streak++
		} else {
			stats.Streak = 0
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&stats).Error; err != nil {
			return err
		}

		var entry LeaderboardEntry
		if err := tx.Where("user_id = ?", userID).First(&entry).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			entry = LeaderboardEntry{UserID: userID}
		}
		entry.Total++
		if correct {
			entry.Correct++
		}
		entry.AnsweredAt = answeredAt
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
	})
}

// GetStats fetches lifetime stats of a user.
func (d *Database) GetStats(userID int64) (Stats, error) {
	d.RLock()
	defer d.RUnlock()

	var stats Stats
	err := d.db.Where("user_id = ?", userID).First(&stats).Error
	return stats, err
}

// Leaderboard ranks users active since a given time by accuracy, then by
// correct count, then by fewer total answers. Counters are lifetime values;
// the time only filters out inactive users.
func (d *Database) Leaderboard(since time.Time, limit int) ([]TopEntry, error) {
	d.RLock()
	defer d.RUnlock()

	entries := []TopEntry{}
	err := d.db.Raw(`select l.user_id, l.correct, l.total, u.username, u.first_name, u.last_name
		from leaderboard_entries l
		join users u on u.user_id = l.user_id
		where l.total > 0 and l.answered_at >= ?
		order by (cast(l.correct as real) / l.total) desc, l.correct desc, l.total asc
		limit ?`, since, limit).Scan(&entries).Error
	return entries, err
}

func (d *Database) saveLog(typ, msg string) {
	d.Lock()
	defer d.Unlock()

	if err := d.db.Create(&Log{
		Type:    typ,
		Message: msg,
	}).Error; err != nil {
		_stderr.Printf("failed to save log into local database: %s", err)
	}
}

// Log logs a message
func (d *Database) Log(msg string) {
	d.saveLog("log", msg)
}

// LogError logs an error message
func (d *Database) LogError(msg string) {
	d.saveLog("err", msg)
}

// GetLogs fetches the latest n logs
func (d *Database) GetLogs(latestN int) []Log {
	d.RLock()
	defer d.RUnlock()

	logs := []Log{}
	if err := d.db.Order("id desc").Limit(latestN).Find(&logs).Error; err != nil {
		_stderr.Printf("failed to select logs from local database: %s", err)
	}
	return logs
}

// PruneLogs deletes log rows older than a given time, returning the
// number of deleted rows.
func (d *Database) PruneLogs(olderThan time.Time) (int64, error) {
	d.Lock()
	defer d.Unlock()

	result := d.db.Where("created_at < ?", olderThan).Delete(&Log{})
	return result.RowsAffected, result.Error
}

// SaveChat saves a chat for broadcasting
func (d *Database) SaveChat(chatID, userID int64) {
	d.Lock()
	defer d.Unlock()

	chat := Chat{
		ChatID: chatID,
		UserID: userID,
	}
	if err := d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&chat).Error; err != nil {
		_stderr.Printf("failed to save chat into local database: %s", err)
	}
}

// DeleteChat deletes a chat
func (d *Database) DeleteChat(chatID int64) {
	d.Lock()
	defer d.Unlock()

	if err := d.db.Where("chat_id = ?", chatID).Delete(&Chat{}).Error; err != nil {
		_stderr.Printf("failed to delete chat from local database: %s", err)
	}
}

// GetChats retrieves all saved chats
func (d *Database) GetChats() []Chat {
	d.RLock()
	defer d.RUnlock()

	chats := []Chat{}
	if err := d.db.Find(&chats).Error; err != nil {
		_stderr.Printf("failed to select chats from local database: %s", err)
	}
	return chats
}

func encodeIndices(indices []int) string {
	bytes, _ := json.Marshal(indices)
	return string(bytes)
}

func decodeIndices(encoded string) []int {
	if encoded == "" {
		return nil
	}
	var indices []int
	if err := json.Unmarshal([]byte(encoded), &indices); err != nil {
		return nil
	}
	return indices
}

func indicesInRange(indices []int, count int) bool {
	for _, index := range indices {
		if index < 0 || index >= count {
			return false
		}
	}
	return true
}
