// Package channelgroup maintains the membership and numbering of channel groups.
//
// A Group keeps an identity index and a sorted sequence over the same set of
// members, reconciles them against persisted and backend-reported state, and
// derives a display number for every member from the numbering policy. Every
// non-internal group numbers itself relative to the internal group of its kind,
// which holds all known channels.
package channelgroup
