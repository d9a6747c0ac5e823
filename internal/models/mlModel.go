package models

import "time"

// MLModel is the metadata of a trained signal model artifact.
type MLModel struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"index;not null" json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Version      string `gorm:"type:varchar(50)" json:"version"`
	ArtifactPath string `gorm:"type:varchar(500)" json:"artifact_path"`
	IsActive     bool   `gorm:"not null;default:false" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MLModel) TableName() string {
	return "ml_models"
}
