package channelgroup

import "github.com/stwalsh4118/lineup/internal/models"

// Member is one channel's membership record within a group.
// Members are not safe for concurrent use; the owning group's lock guards them.
type Member struct {
	channel        *models.Channel
	channelNumber  models.ChannelNumber
	clientNumber   models.ChannelNumber
	clientPriority int
	order          int
	changed        bool
}

// NewMember creates a member that still needs to be saved
func NewMember(channel *models.Channel, channelNumber models.ChannelNumber, clientPriority, order int, clientNumber models.ChannelNumber) *Member {
	return &Member{
		channel:        channel,
		channelNumber:  channelNumber,
		clientNumber:   clientNumber,
		clientPriority: clientPriority,
		order:          order,
		changed:        true,
	}
}

// Key returns the storage id of the member's channel
func (m *Member) Key() models.StorageID {
	return m.channel.StorageID()
}

// Channel returns the shared channel reference
func (m *Member) Channel() *models.Channel {
	return m.channel
}

// ChannelNumber returns the group-local number
func (m *Member) ChannelNumber() models.ChannelNumber {
	return m.channelNumber
}

// SetChannelNumber sets the group-local number
func (m *Member) SetChannelNumber(n models.ChannelNumber) {
	if m.channelNumber != n {
		m.channelNumber = n
		m.changed = true
	}
}

// ClientChannelNumber returns the backend-reported number
func (m *Member) ClientChannelNumber() models.ChannelNumber {
	return m.clientNumber
}

// SetClientChannelNumber sets the backend-reported number
func (m *Member) SetClientChannelNumber(n models.ChannelNumber) {
	if m.clientNumber != n {
		m.clientNumber = n
		m.changed = true
	}
}

// ClientPriority returns the priority of the member's backend
func (m *Member) ClientPriority() int {
	return m.clientPriority
}

// SetClientPriority sets the priority of the member's backend
func (m *Member) SetClientPriority(priority int) {
	if m.clientPriority != priority {
		m.clientPriority = priority
		m.changed = true
	}
}

// Order returns the backend-supplied order value
func (m *Member) Order() int {
	return m.order
}

// SetOrder sets the backend-supplied order value
func (m *Member) SetOrder(order int) {
	if m.order != order {
		m.order = order
		m.changed = true
	}
}

// NeedsSave reports whether the member changed since it was last saved
func (m *Member) NeedsSave() bool {
	return m.changed
}

// SetSaved clears the dirty flag
func (m *Member) SetSaved() {
	m.changed = false
}

// Info returns a copy of the member that is safe to hand out
func (m *Member) Info() MemberInfo {
	return MemberInfo{
		Channel:             m.channel,
		ChannelNumber:       m.channelNumber,
		ClientChannelNumber: m.clientNumber,
		ClientPriority:      m.clientPriority,
		Order:               m.order,
	}
}

// MemberInfo is a point-in-time copy of a member
type MemberInfo struct {
	Channel             *models.Channel
	ChannelNumber       models.ChannelNumber
	ClientChannelNumber models.ChannelNumber
	ClientPriority      int
	Order               int
}

// Key returns the storage id of the member's channel
func (m MemberInfo) Key() models.StorageID {
	return m.Channel.StorageID()
}
