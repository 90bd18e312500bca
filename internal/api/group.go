package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/manager"
	"github.com/stwalsh4118/lineup/internal/models"
)

const requestTimeout = 5 * time.Second

// Request/Response DTOs

// CreateGroupRequest represents a request to create a user-defined group
type CreateGroupRequest struct {
	Name  string `json:"name" binding:"required"`
	Radio bool   `json:"radio"`
}

// UpdateGroupRequest represents a partial update of a group
type UpdateGroupRequest struct {
	Name     *string `json:"name,omitempty"`
	Position *int    `json:"position,omitempty"`
	Hidden   *bool   `json:"hidden,omitempty"`
}

// AddMemberRequest identifies the channel to append to a group
type AddMemberRequest struct {
	BackendID int `json:"backend_id" binding:"required,gt=0"`
	UniqueID  int `json:"unique_id" binding:"required"`
}

// UpdateMemberRequest holds user edits to a channel of a group
type UpdateMemberRequest struct {
	Name     string `json:"name" binding:"required"`
	IconPath string `json:"icon_path"`
	Number   uint   `json:"number"`
	Hidden   bool   `json:"hidden"`
	Locked   bool   `json:"locked"`
}

// GroupResponse represents a channel group in API responses
type GroupResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	Radio          bool       `json:"radio"`
	Type           string     `json:"type"`
	Position       int        `json:"position"`
	Hidden         bool       `json:"hidden"`
	Members        int        `json:"members"`
	LastWatched    *time.Time `json:"last_watched,omitempty"`
	LastOpened     *time.Time `json:"last_opened,omitempty"`
	EPGFirst       *time.Time `json:"epg_first,omitempty"`
	EPGLast        *time.Time `json:"epg_last,omitempty"`
	FailedBackends []int      `json:"failed_backends,omitempty"`
}

// GroupListResponse represents a list of groups
type GroupListResponse struct {
	Groups []*GroupResponse `json:"groups"`
}

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	ChannelID    int64      `json:"channel_id"`
	BackendID    int        `json:"backend_id"`
	UniqueID     int        `json:"unique_id"`
	Name         string     `json:"name"`
	IconPath     string     `json:"icon_path,omitempty"`
	Number       string     `json:"number"`
	ClientNumber string     `json:"client_number"`
	Order        int        `json:"order"`
	Hidden       bool       `json:"hidden"`
	Locked       bool       `json:"locked"`
	LastWatched  *time.Time `json:"last_watched,omitempty"`
}

// MemberListResponse represents the members of a group
type MemberListResponse struct {
	GroupID int64             `json:"group_id"`
	Members []*MemberResponse `json:"members"`
}

func groupType(g *channelgroup.Group) string {
	switch g.GroupType() {
	case models.GroupTypeInternal:
		return "internal"
	case models.GroupTypeUserDefined:
		return "user"
	default:
		return "backend"
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// toGroupResponse converts a group to API response format
func toGroupResponse(g *channelgroup.Group) *GroupResponse {
	first, last := g.EPGDateRange()
	return &GroupResponse{
		ID:             g.ID(),
		Name:           g.GroupName(),
		Path:           g.Path().String(),
		Radio:          g.IsRadio(),
		Type:           groupType(g),
		Position:       g.Position(),
		Hidden:         g.IsHidden(),
		Members:        g.Size(),
		LastWatched:    optionalTime(g.LastWatched()),
		LastOpened:     optionalTime(g.LastOpened()),
		EPGFirst:       optionalTime(first),
		EPGLast:        optionalTime(last),
		FailedBackends: g.FailedBackends(),
	}
}

// toMemberResponse converts a member to API response format
func toMemberResponse(m channelgroup.MemberInfo) *MemberResponse {
	return &MemberResponse{
		ChannelID:    m.Channel.ID(),
		BackendID:    m.Channel.BackendID,
		UniqueID:     m.Channel.UniqueID,
		Name:         m.Channel.Name(),
		IconPath:     m.Channel.IconPath(),
		Number:       m.ChannelNumber.String(),
		ClientNumber: m.ClientChannelNumber.String(),
		Order:        m.Order,
		Hidden:       m.Channel.IsHidden(),
		Locked:       m.Channel.IsLocked(),
		LastWatched:  optionalTime(m.Channel.LastWatched()),
	}
}

// GroupHandler handles channel group API requests
type GroupHandler struct {
	manager *manager.Manager
}

// NewGroupHandler creates a new group handler instance
func NewGroupHandler(m *manager.Manager) *GroupHandler {
	return &GroupHandler{manager: m}
}

func (h *GroupHandler) groupFromParam(c *gin.Context) (*channelgroup.Group, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid_id", "Invalid group ID format")
		return nil, false
	}
	g, ok := h.manager.Group(id)
	if !ok {
		writeError(c, manager.ErrGroupNotFound, "find channel group")
		return nil, false
	}
	return g, true
}

func keyFromParams(c *gin.Context) (models.StorageID, bool) {
	backendID, err := strconv.Atoi(c.Param("backend"))
	if err != nil {
		badRequest(c, "invalid_backend", "Invalid backend ID format")
		return models.StorageID{}, false
	}
	uid, err := strconv.Atoi(c.Param("uid"))
	if err != nil {
		badRequest(c, "invalid_uid", "Invalid channel UID format")
		return models.StorageID{}, false
	}
	return models.StorageID{BackendID: backendID, UniqueID: uid}, true
}

// ListGroups handles GET /api/groups?radio=
func (h *GroupHandler) ListGroups(c *gin.Context) {
	radio, err := strconv.ParseBool(c.DefaultQuery("radio", "false"))
	if err != nil {
		badRequest(c, "invalid_radio", "radio must be true or false")
		return
	}

	groups := h.manager.Groups(radio)
	responses := make([]*GroupResponse, 0, len(groups))
	for _, g := range groups {
		responses = append(responses, toGroupResponse(g))
	}
	c.JSON(http.StatusOK, GroupListResponse{Groups: responses})
}

// GetGroup handles GET /api/groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(g))
}

// ListMembers handles GET /api/groups/:id/members?filter=all|visible|hidden
func (h *GroupHandler) ListMembers(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	var filter channelgroup.Include
	switch c.DefaultQuery("filter", "all") {
	case "all":
		filter = channelgroup.IncludeAll
	case "visible":
		filter = channelgroup.IncludeVisible
	case "hidden":
		filter = channelgroup.IncludeHidden
	default:
		badRequest(c, "invalid_filter", "filter must be one of: all, visible, hidden")
		return
	}

	members := g.Members(filter)
	responses := make([]*MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, toMemberResponse(m))
	}
	c.JSON(http.StatusOK, MemberListResponse{GroupID: g.ID(), Members: responses})
}

// CreateGroup handles POST /api/groups
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	g, err := h.manager.CreateUserGroup(ctx, req.Radio, req.Name)
	if err != nil {
		writeError(c, err, "create channel group")
		return
	}

	logger.Log.Info().
		Int64("group_id", g.ID()).
		Str("name", g.GroupName()).
		Msg("Channel group created successfully")

	c.JSON(http.StatusCreated, toGroupResponse(g))
}

// UpdateGroup handles PUT /api/groups/:id
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	updated, err := h.manager.UpdateGroup(ctx, g.ID(), manager.GroupUpdate{
		Name:     req.Name,
		Position: req.Position,
		Hidden:   req.Hidden,
	})
	if err != nil {
		writeError(c, err, "update channel group")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(updated))
}

// DeleteGroup handles DELETE /api/groups/:id
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.manager.DeleteGroup(ctx, g.ID()); err != nil {
		writeError(c, err, "delete channel group")
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMember handles POST /api/groups/:id/members
func (h *GroupHandler) AddMember(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	key := models.StorageID{BackendID: req.BackendID, UniqueID: req.UniqueID}
	if err := h.manager.AppendChannel(ctx, g.ID(), key); err != nil {
		writeError(c, err, "add channel to group")
		return
	}

	member, _ := g.MemberByKey(key)
	c.JSON(http.StatusCreated, toMemberResponse(member))
}

// RemoveMember handles DELETE /api/groups/:id/members/:backend/:uid
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}
	key, ok := keyFromParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.manager.RemoveChannel(ctx, g.ID(), key); err != nil {
		writeError(c, err, "remove channel from group")
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateMember handles PUT /api/groups/:id/members/:backend/:uid
func (h *GroupHandler) UpdateMember(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}
	key, ok := keyFromParams(c)
	if !ok {
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	update := channelgroup.ChannelUpdate{
		Name:     req.Name,
		IconPath: req.IconPath,
		Number:   req.Number,
		Hidden:   req.Hidden,
		Locked:   req.Locked,
	}
	if err := h.manager.UpdateChannel(ctx, g.ID(), key, update); err != nil {
		writeError(c, err, "update channel")
		return
	}

	// a hidden channel has left the group
	member, ok := g.MemberByKey(key)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, toMemberResponse(member))
}

// OpenGroup handles POST /api/groups/:id/open
func (h *GroupHandler) OpenGroup(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	g, err := h.manager.OpenGroup(ctx, g.ID())
	if err != nil {
		writeError(c, err, "open channel group")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(g))
}

// MarkWatched handles POST /api/groups/:id/watched/:backend/:uid
func (h *GroupHandler) MarkWatched(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}
	key, ok := keyFromParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if _, err := h.manager.MarkWatched(ctx, g.ID(), key, time.Now().UTC()); err != nil {
		writeError(c, err, "mark channel watched")
		return
	}

	member, _ := g.MemberByKey(key)
	c.JSON(http.StatusOK, toMemberResponse(member))
}

// ChannelByNumber handles GET /api/groups/:id/number/:number
func (h *GroupHandler) ChannelByNumber(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	number, err := models.ParseChannelNumber(c.Param("number"))
	if err != nil {
		badRequest(c, "invalid_number", "Channel number must look like 12 or 12.3")
		return
	}

	channel := g.ChannelByNumber(number)
	if channel == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_channel", Message: "No channel has this number"})
		return
	}
	member, _ := g.MemberByKey(channel.StorageID())
	c.JSON(http.StatusOK, toMemberResponse(member))
}

// LastPlayed handles GET /api/groups/:id/last-played?exclude=<channel id>
func (h *GroupHandler) LastPlayed(c *gin.Context) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}

	exclude, err := strconv.ParseInt(c.DefaultQuery("exclude", "0"), 10, 64)
	if err != nil {
		badRequest(c, "invalid_exclude", "exclude must be a channel ID")
		return
	}

	channel := g.LastPlayedChannel(exclude)
	if channel == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_channel", Message: "No channel of this group was played"})
		return
	}
	member, _ := g.MemberByKey(channel.StorageID())
	c.JSON(http.StatusOK, toMemberResponse(member))
}

// NextChannel handles GET /api/groups/:id/next/:backend/:uid
func (h *GroupHandler) NextChannel(c *gin.Context) {
	h.neighbour(c, (*channelgroup.Group).NextChannel)
}

// PreviousChannel handles GET /api/groups/:id/previous/:backend/:uid
func (h *GroupHandler) PreviousChannel(c *gin.Context) {
	h.neighbour(c, (*channelgroup.Group).PreviousChannel)
}

func (h *GroupHandler) neighbour(c *gin.Context, step func(*channelgroup.Group, *models.Channel) *models.Channel) {
	g, ok := h.groupFromParam(c)
	if !ok {
		return
	}
	key, ok := keyFromParams(c)
	if !ok {
		return
	}

	current := g.ChannelByKey(key)
	if current == nil {
		writeError(c, channelgroup.ErrNotMember, "find channel")
		return
	}
	next := step(g, current)
	if next == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_visible_channel", Message: "Group has no visible channel"})
		return
	}

	member, _ := g.MemberByKey(next.StorageID())
	c.JSON(http.StatusOK, toMemberResponse(member))
}

// Refresh handles POST /api/groups/refresh
func (h *GroupHandler) Refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	if err := h.manager.Refresh(ctx); err != nil {
		writeError(c, err, "refresh channel groups")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetupGroupRoutes registers channel group routes
func SetupGroupRoutes(apiGroup *gin.RouterGroup, m *manager.Manager) {
	handler := NewGroupHandler(m)

	apiGroup.GET("/groups", handler.ListGroups)
	apiGroup.POST("/groups", handler.CreateGroup)
	apiGroup.POST("/groups/refresh", handler.Refresh)
	apiGroup.GET("/groups/:id", handler.GetGroup)
	apiGroup.PUT("/groups/:id", handler.UpdateGroup)
	apiGroup.DELETE("/groups/:id", handler.DeleteGroup)

	// Membership endpoints
	apiGroup.GET("/groups/:id/members", handler.ListMembers)
	apiGroup.POST("/groups/:id/members", handler.AddMember)
	apiGroup.PUT("/groups/:id/members/:backend/:uid", handler.UpdateMember)
	apiGroup.DELETE("/groups/:id/members/:backend/:uid", handler.RemoveMember)
	apiGroup.GET("/groups/:id/next/:backend/:uid", handler.NextChannel)
	apiGroup.GET("/groups/:id/previous/:backend/:uid", handler.PreviousChannel)
	apiGroup.GET("/groups/:id/number/:number", handler.ChannelByNumber)
	apiGroup.GET("/groups/:id/last-played", handler.LastPlayed)

	// Usage tracking
	apiGroup.POST("/groups/:id/open", handler.OpenGroup)
	apiGroup.POST("/groups/:id/watched/:backend/:uid", handler.MarkWatched)
}
