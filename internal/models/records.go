package models

import "time"

// ChannelRecord is the persisted form of a Channel
type ChannelRecord struct {
	ID          int64     `json:"id" gorm:"type:integer;primaryKey;autoIncrement;column:id"`
	BackendID   int       `json:"backend_id" gorm:"type:integer;not null;uniqueIndex:idx_channel_key;column:backend_id"`
	UniqueID    int       `json:"unique_id" gorm:"type:integer;not null;uniqueIndex:idx_channel_key;column:unique_id"`
	Radio       bool      `json:"radio" gorm:"type:integer;not null;default:0;column:radio"`
	Name        string    `json:"name" gorm:"type:text;not null;column:name"`
	IconPath    string    `json:"icon_path" gorm:"type:text;column:icon_path"`
	Hidden      bool      `json:"hidden" gorm:"type:integer;not null;default:0;column:hidden"`
	Locked      bool      `json:"locked" gorm:"type:integer;not null;default:0;column:locked"`
	EPGID       int       `json:"epg_id" gorm:"type:integer;column:epg_id"`
	LastWatched time.Time `json:"last_watched" gorm:"type:datetime;column:last_watched"`
}

// TableName overrides the GORM table name
func (ChannelRecord) TableName() string { return "channels" }

// GroupRecord is the persisted form of a channel group
type GroupRecord struct {
	ID          int64     `json:"id" gorm:"type:integer;primaryKey;autoIncrement;column:id"`
	Radio       bool      `json:"radio" gorm:"type:integer;not null;default:0;column:radio"`
	GroupType   int       `json:"group_type" gorm:"type:integer;not null;default:0;column:group_type"`
	Name        string    `json:"name" gorm:"type:text;not null;column:name"`
	Position    int       `json:"position" gorm:"type:integer;not null;default:0;column:position"`
	Hidden      bool      `json:"hidden" gorm:"type:integer;not null;default:0;column:hidden"`
	LastWatched time.Time `json:"last_watched" gorm:"type:datetime;column:last_watched"`
	LastOpened  time.Time `json:"last_opened" gorm:"type:datetime;column:last_opened"`
}

// TableName overrides the GORM table name
func (GroupRecord) TableName() string { return "channel_groups" }

// MemberRecord is the persisted form of a group membership
type MemberRecord struct {
	GroupID             int64 `json:"group_id" gorm:"type:integer;primaryKey;column:group_id"`
	ChannelID           int64 `json:"channel_id" gorm:"type:integer;primaryKey;column:channel_id"`
	ChannelNumber       uint  `json:"channel_number" gorm:"type:integer;not null;default:0;column:channel_number"`
	SubChannelNumber    uint  `json:"sub_channel_number" gorm:"type:integer;not null;default:0;column:sub_channel_number"`
	ClientChannelNumber uint  `json:"client_channel_number" gorm:"type:integer;not null;default:0;column:client_channel_number"`
	ClientSubNumber     uint  `json:"client_sub_number" gorm:"type:integer;not null;default:0;column:client_sub_number"`
	Order               int   `json:"order" gorm:"type:integer;not null;default:0;column:sort_order"`

	// Populated by joins, not stored in the members table
	Channel *ChannelRecord `json:"channel,omitempty" gorm:"foreignKey:ChannelID;references:ID"`
}

// TableName overrides the GORM table name
func (MemberRecord) TableName() string { return "channel_group_members" }

// BackendGroup is a raw group description reported by a backend
type BackendGroup struct {
	Radio    bool   `json:"radio" yaml:"radio"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}
