package db

import "time"

// User maps parrot.users.
type User struct {
	UserID       int64      `gorm:"column:user_id;primaryKey;autoIncrement"`
	UserUUID     string     `gorm:"column:user_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Email        string     `gorm:"column:email;type:text;not null;unique"`
	FullName     string     `gorm:"column:full_name;type:text;not null;default:''"`
	PasswordHash string     `gorm:"column:password_hash;type:text;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at;type:timestamptz"`
}

func (User) TableName() string { return "parrot.users" }

// Session maps parrot.sessions.
type Session struct {
	SessionID  string    `gorm:"column:session_id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     int64     `gorm:"column:user_id;type:bigint;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;type:timestamptz;not null;default:now()"`
}

func (Session) TableName() string { return "parrot.sessions" }

// UserQuota maps parrot.user_quotas. One row per user, created at registration.
type UserQuota struct {
	UserID     int64     `gorm:"column:user_id;type:bigint;primaryKey"`
	QuotaUsed  int       `gorm:"column:quota_used;type:integer;not null;default:0"`
	QuotaLimit int       `gorm:"column:quota_limit;type:integer;not null;default:3"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UserQuota) TableName() string { return "parrot.user_quotas" }

// HistoryRecordModel maps parrot.history_records. Rows are insert-only.
type HistoryRecordModel struct {
	RecordID       int64     `gorm:"column:record_id;primaryKey;autoIncrement"`
	RecordUUID     string    `gorm:"column:record_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	UserID         *int64    `gorm:"column:user_id;type:bigint"`
	TargetLang     string    `gorm:"column:target_lang;type:text;not null"`
	SourceLang     string    `gorm:"column:source_lang;type:text;not null;default:und"`
	OriginalText   string    `gorm:"column:original_text;type:text;not null"`
	TranslatedText string    `gorm:"column:translated_text;type:text;not null"`
	AudioFile      string    `gorm:"column:audio_file;type:text;not null;default:''"`
	RecordedAt     time.Time `gorm:"column:recorded_at;type:timestamptz;not null;default:now()"`
}

func (HistoryRecordModel) TableName() string { return "parrot.history_records" }

func autoMigrateModels() []any {
	return []any{
		&User{},
		&Session{},
		&UserQuota{},
		&HistoryRecordModel{},
	}
}
