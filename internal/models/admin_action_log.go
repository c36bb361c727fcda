package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminActionLog is an append-only audit trail of admin mutations.
type AdminActionLog struct {
	ID      uint64         `gorm:"primaryKey;autoIncrement"`
	ActorID uint64         `gorm:"index"`
	Action  string         `gorm:"type:varchar(50);not null;index"`
	Details datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (AdminActionLog) TableName() string {
	return "admin_action_logs"
}
