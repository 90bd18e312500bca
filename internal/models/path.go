package models

import (
	"fmt"
	"strings"
)

const (
	channelsPathRoot = "pvr://channels/"
	pathKindTV       = "tv"
	pathKindRadio    = "radio"
)

// ChannelsPath combines the radio flag and group name of a channel group
type ChannelsPath struct {
	Radio     bool
	GroupName string
}

// NewChannelsPath creates a path for the given kind and group name
func NewChannelsPath(radio bool, groupName string) ChannelsPath {
	return ChannelsPath{Radio: radio, GroupName: groupName}
}

// String returns the path form, e.g. "pvr://channels/tv/Favourites/"
func (p ChannelsPath) String() string {
	kind := pathKindTV
	if p.Radio {
		kind = pathKindRadio
	}
	return channelsPathRoot + kind + "/" + strings.ReplaceAll(p.GroupName, "/", "%2F") + "/"
}

// ParseChannelsPath parses the string form produced by String
func ParseChannelsPath(s string) (ChannelsPath, error) {
	rest, ok := strings.CutPrefix(s, channelsPathRoot)
	if !ok {
		return ChannelsPath{}, fmt.Errorf("invalid channels path %q", s)
	}

	kind, name, ok := strings.Cut(strings.TrimSuffix(rest, "/"), "/")
	if !ok || name == "" {
		return ChannelsPath{}, fmt.Errorf("channels path %q has no group name", s)
	}

	switch kind {
	case pathKindTV:
		return NewChannelsPath(false, strings.ReplaceAll(name, "%2F", "/")), nil
	case pathKindRadio:
		return NewChannelsPath(true, strings.ReplaceAll(name, "%2F", "/")), nil
	default:
		return ChannelsPath{}, fmt.Errorf("channels path %q has unknown kind %q", s, kind)
	}
}
