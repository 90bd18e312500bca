package db

// Repositories provides access to all database repositories
type Repositories struct {
	Channels *ChannelRepository
	Groups   *GroupRepository
	Members  *MemberRepository
	Settings *SettingsRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Channels: NewChannelRepository(db),
		Groups:   NewGroupRepository(db),
		Members:  NewMemberRepository(db),
		Settings: NewSettingsRepository(db),
	}
}
