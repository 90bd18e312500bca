package models

// Group type constants, stored in channel_groups.group_type
const (
	GroupTypeDefault     = 0
	GroupTypeInternal    = 1
	GroupTypeUserDefined = 2
)

// Policy setting keys
const (
	SettingSyncChannelGroups               = "pvr.syncchannelgroups"
	SettingBackendChannelOrder             = "pvr.backendchannelorder"
	SettingUseBackendChannelNumbers        = "pvr.usebackendchannelnumbers"
	SettingUseBackendChannelNumbersAlways  = "pvr.usebackendchannelnumbersalways"
	SettingStartGroupChannelNumbersFromOne = "pvr.startgroupchannelnumbersfromone"
)

// PolicySettingKeys lists every policy key in a stable order
var PolicySettingKeys = []string{
	SettingSyncChannelGroups,
	SettingBackendChannelOrder,
	SettingUseBackendChannelNumbers,
	SettingUseBackendChannelNumbersAlways,
	SettingStartGroupChannelNumbersFromOne,
}
