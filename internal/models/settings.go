package models

import (
	"time"
)

// Settings represents the persisted channel numbering policy
type Settings struct {
	ID                              int       `json:"id" gorm:"type:integer;primaryKey;default:1;column:id"`
	SyncChannelGroups               bool      `json:"sync_channel_groups" gorm:"type:integer;not null;default:1;column:sync_channel_groups"`
	BackendChannelOrder             bool      `json:"backend_channel_order" gorm:"type:integer;not null;default:1;column:backend_channel_order"`
	UseBackendChannelNumbers        bool      `json:"use_backend_channel_numbers" gorm:"type:integer;not null;default:0;column:use_backend_channel_numbers"`
	UseBackendChannelNumbersAlways  bool      `json:"use_backend_channel_numbers_always" gorm:"type:integer;not null;default:0;column:use_backend_channel_numbers_always"`
	StartGroupChannelNumbersFromOne bool      `json:"start_group_channel_numbers_from_one" gorm:"type:integer;not null;default:0;column:start_group_channel_numbers_from_one"`
	UpdatedAt                       time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		ID:                  1,
		SyncChannelGroups:   true,
		BackendChannelOrder: true,
		UpdatedAt:           time.Now().UTC(),
	}
}

// Flags returns the settings keyed by policy setting key
func (s *Settings) Flags() map[string]bool {
	return map[string]bool{
		SettingSyncChannelGroups:               s.SyncChannelGroups,
		SettingBackendChannelOrder:             s.BackendChannelOrder,
		SettingUseBackendChannelNumbers:        s.UseBackendChannelNumbers,
		SettingUseBackendChannelNumbersAlways:  s.UseBackendChannelNumbersAlways,
		SettingStartGroupChannelNumbersFromOne: s.StartGroupChannelNumbersFromOne,
	}
}

// SetFlag sets the flag for a policy setting key and reports whether the key is known
func (s *Settings) SetFlag(key string, value bool) bool {
	switch key {
	case SettingSyncChannelGroups:
		s.SyncChannelGroups = value
	case SettingBackendChannelOrder:
		s.BackendChannelOrder = value
	case SettingUseBackendChannelNumbers:
		s.UseBackendChannelNumbers = value
	case SettingUseBackendChannelNumbersAlways:
		s.UseBackendChannelNumbersAlways = value
	case SettingStartGroupChannelNumbersFromOne:
		s.StartGroupChannelNumbersFromOne = value
	default:
		return false
	}
	return true
}
