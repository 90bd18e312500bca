package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/db"
	"github.com/stwalsh4118/lineup/internal/events"
	"github.com/stwalsh4118/lineup/internal/manager"
	"github.com/stwalsh4118/lineup/internal/models"
	"github.com/stwalsh4118/lineup/internal/policy"
)

type testServer struct {
	router  *gin.Engine
	manager *manager.Manager
	dir     *backend.Directory
	bus     *events.Bus
}

// setupTestServer starts a manager over a temporary database and one static backend
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "lineup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	source := backend.NewStaticSource(
		backend.SourceChannel{UniqueID: 1, Name: "Alpha", Number: models.NewChannelNumber(1, 0), Groups: []string{"News"}, Order: 1},
		backend.SourceChannel{UniqueID: 2, Name: "Beta", Number: models.NewChannelNumber(2, 0), Groups: []string{"News", "Sports"}, Order: 2},
		backend.SourceChannel{UniqueID: 3, Name: "Gamma", Number: models.NewChannelNumber(3, 0), Groups: []string{"Sports"}, Order: 3},
	)
	dir := backend.NewDirectory(backend.WithQueryTimeout(time.Second))
	require.NoError(t, dir.Register(1, "local", 0, true, source))

	v := viper.New()
	v.SetDefault(models.SettingSyncChannelGroups, true)
	v.SetDefault(models.SettingBackendChannelOrder, true)
	provider := policy.New(v)

	repos := db.NewRepositories(database)
	bus := events.NewBus(16)
	m := manager.New(
		db.NewGroupStore(database, repos),
		repos.Groups,
		dir,
		provider,
		events.NewGroupSink(bus, time.Second),
		manager.Config{TVGroupName: "All channels", RadioGroupName: "All radio channels"},
	)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, m, dir)
	SetupGroupRoutes(apiGroup, m)
	SetupSettingsRoutes(apiGroup, provider)
	SetupBackendRoutes(apiGroup, dir, m)
	SetupEventRoutes(apiGroup, bus, nil)

	return &testServer{router: router, manager: m, dir: dir, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) groupID(t *testing.T, name string) int64 {
	t.Helper()
	for _, g := range s.manager.Groups(false) {
		if g.GroupName() == name {
			return g.ID()
		}
	}
	t.Fatalf("group %q not found", name)
	return 0
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.Database)
	assert.Equal(t, "loaded", resp.Groups)
	assert.EqualValues(t, 1, resp.Details["backends_enabled"])
}

func TestListGroups(t *testing.T) {
	s := setupTestServer(t)

	t.Run("TV groups with internal group first", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/groups", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		resp := decode[GroupListResponse](t, w)
		require.Len(t, resp.Groups, 3)
		assert.Equal(t, "All channels", resp.Groups[0].Name)
		assert.Equal(t, "internal", resp.Groups[0].Type)
		assert.Equal(t, 3, resp.Groups[0].Members)
		assert.Equal(t, "News", resp.Groups[1].Name)
		assert.Equal(t, "backend", resp.Groups[1].Type)
		assert.Equal(t, "pvr://channels/tv/News/", resp.Groups[1].Path)
	})

	t.Run("Radio groups", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/groups?radio=true", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		resp := decode[GroupListResponse](t, w)
		require.Len(t, resp.Groups, 1)
		assert.Equal(t, "All radio channels", resp.Groups[0].Name)
		assert.True(t, resp.Groups[0].Radio)
	})

	t.Run("Invalid radio flag", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/groups?radio=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_radio", decode[ErrorResponse](t, w).Error)
	})
}

func TestGetGroup(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d", s.groupID(t, "Sports")), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sports", decode[GroupResponse](t, w).Name)

	w = s.do(t, http.MethodGet, "/api/groups/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/groups/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Error)
}

func TestListMembers(t *testing.T) {
	s := setupTestServer(t)
	sports := s.groupID(t, "Sports")

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/members", sports), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[MemberListResponse](t, w)
	assert.Equal(t, sports, resp.GroupID)
	require.Len(t, resp.Members, 2)
	assert.Equal(t, "Beta", resp.Members[0].Name)
	assert.Equal(t, "2", resp.Members[0].Number)
	assert.Equal(t, "Gamma", resp.Members[1].Name)
	assert.Equal(t, "3", resp.Members[1].Number)
	assert.Greater(t, resp.Members[0].ChannelID, int64(0))

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/members?filter=hidden", sports), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[MemberListResponse](t, w).Members)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/members?filter=some", sports), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserGroupLifecycle(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "Favourites"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[GroupResponse](t, w)
	assert.Equal(t, "user", created.Type)
	assert.Zero(t, created.Members)

	t.Run("Duplicate and invalid names", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "News"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_name", decode[ErrorResponse](t, w).Error)

		w = s.do(t, http.MethodPost, "/api/groups", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	membersPath := fmt.Sprintf("/api/groups/%d/members", created.ID)

	t.Run("Add members", func(t *testing.T) {
		w := s.do(t, http.MethodPost, membersPath, AddMemberRequest{BackendID: 1, UniqueID: 3})
		require.Equal(t, http.StatusCreated, w.Code)
		member := decode[MemberResponse](t, w)
		assert.Equal(t, "Gamma", member.Name)
		assert.Equal(t, "3", member.Number)

		w = s.do(t, http.MethodPost, membersPath, AddMemberRequest{BackendID: 1, UniqueID: 3})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(t, http.MethodPost, membersPath, AddMemberRequest{BackendID: 1, UniqueID: 99})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "unknown_channel", decode[ErrorResponse](t, w).Error)

		w = s.do(t, http.MethodPost, membersPath, AddMemberRequest{BackendID: 1, UniqueID: 1})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Backend groups reject membership changes", func(t *testing.T) {
		path := fmt.Sprintf("/api/groups/%d/members", s.groupID(t, "News"))
		w := s.do(t, http.MethodPost, path, AddMemberRequest{BackendID: 1, UniqueID: 3})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Remove member", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, membersPath+"/1/3", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(t, http.MethodDelete, membersPath+"/1/3", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_member", decode[ErrorResponse](t, w).Error)

		w = s.do(t, http.MethodDelete, membersPath+"/x/3", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Update group", func(t *testing.T) {
		name := "Evening"
		hidden := true
		w := s.do(t, http.MethodPut, fmt.Sprintf("/api/groups/%d", created.ID), UpdateGroupRequest{Name: &name, Hidden: &hidden})
		require.Equal(t, http.StatusOK, w.Code)
		updated := decode[GroupResponse](t, w)
		assert.Equal(t, "Evening", updated.Name)
		assert.True(t, updated.Hidden)
		assert.Equal(t, 1, updated.Members)

		taken := "Sports"
		w = s.do(t, http.MethodPut, fmt.Sprintf("/api/groups/%d", created.ID), UpdateGroupRequest{Name: &taken})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Delete group", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/groups/%d", s.groupID(t, "News")), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/groups/%d", created.ID), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d", created.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNextAndPreviousChannel(t *testing.T) {
	s := setupTestServer(t)
	internal := s.manager.Internal(false).ID()

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/next/1/1", internal), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Beta", decode[MemberResponse](t, w).Name)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/previous/1/1", internal), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Gamma", decode[MemberResponse](t, w).Name)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/next/1/42", internal), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMember(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "Favourites"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[GroupResponse](t, w)
	membersPath := fmt.Sprintf("/api/groups/%d/members", created.ID)
	for _, uid := range []int{1, 3} {
		w = s.do(t, http.MethodPost, membersPath, AddMemberRequest{BackendID: 1, UniqueID: uid})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("Rename and renumber", func(t *testing.T) {
		w := s.do(t, http.MethodPut, membersPath+"/1/1", UpdateMemberRequest{Name: "Alpha HD", Number: 9, Locked: true})
		require.Equal(t, http.StatusOK, w.Code)
		member := decode[MemberResponse](t, w)
		assert.Equal(t, "Alpha HD", member.Name)
		assert.Equal(t, "9", member.Number)
		assert.True(t, member.Locked)
	})

	t.Run("Hiding removes the member", func(t *testing.T) {
		w := s.do(t, http.MethodPut, membersPath+"/1/3", UpdateMemberRequest{Name: "Gamma", Hidden: true})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(t, http.MethodGet, membersPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		members := decode[MemberListResponse](t, w).Members
		require.Len(t, members, 1)
		assert.Equal(t, "Alpha HD", members[0].Name)
	})

	t.Run("Invalid requests", func(t *testing.T) {
		w := s.do(t, http.MethodPut, membersPath+"/1/3", UpdateMemberRequest{Name: "Gamma"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_member", decode[ErrorResponse](t, w).Error)

		w = s.do(t, http.MethodPut, membersPath+"/1/1", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		path := fmt.Sprintf("/api/groups/%d/members/1/2", s.groupID(t, "News"))
		w = s.do(t, http.MethodPut, path, UpdateMemberRequest{Name: "Beta"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGroupUsage(t *testing.T) {
	s := setupTestServer(t)
	sportsID := s.groupID(t, "Sports")
	sportsPath := fmt.Sprintf("/api/groups/%d", sportsID)

	t.Run("Open group", func(t *testing.T) {
		w := s.do(t, http.MethodPost, sportsPath+"/open", nil)
		require.Equal(t, http.StatusOK, w.Code)
		group := decode[GroupResponse](t, w)
		require.NotNil(t, group.LastOpened)
		assert.WithinDuration(t, time.Now(), *group.LastOpened, time.Minute)

		w = s.do(t, http.MethodPost, "/api/groups/999/open", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Nothing played yet", func(t *testing.T) {
		w := s.do(t, http.MethodGet, sportsPath+"/last-played", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "no_channel", decode[ErrorResponse](t, w).Error)
	})

	var gammaID int64
	t.Run("Mark watched", func(t *testing.T) {
		w := s.do(t, http.MethodPost, sportsPath+"/watched/1/2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, decode[MemberResponse](t, w).LastWatched)

		w = s.do(t, http.MethodPost, sportsPath+"/watched/1/3", nil)
		require.Equal(t, http.StatusOK, w.Code)
		gamma := decode[MemberResponse](t, w)
		gammaID = gamma.ChannelID

		w = s.do(t, http.MethodGet, sportsPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, decode[GroupResponse](t, w).LastWatched)

		// Alpha is not in Sports
		w = s.do(t, http.MethodPost, sportsPath+"/watched/1/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Last played skips the current channel", func(t *testing.T) {
		w := s.do(t, http.MethodGet, fmt.Sprintf("%s/last-played?exclude=%d", sportsPath, gammaID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Beta", decode[MemberResponse](t, w).Name)

		w = s.do(t, http.MethodGet, sportsPath+"/last-played?exclude=x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChannelByNumber(t *testing.T) {
	s := setupTestServer(t)
	sportsPath := fmt.Sprintf("/api/groups/%d", s.groupID(t, "Sports"))

	w := s.do(t, http.MethodGet, sportsPath+"/number/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Gamma", decode[MemberResponse](t, w).Name)

	w = s.do(t, http.MethodGet, sportsPath+"/number/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_channel", decode[ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, sportsPath+"/number/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_number", decode[ErrorResponse](t, w).Error)
}

func TestGroupEPGRange(t *testing.T) {
	s := setupTestServer(t)
	sportsPath := fmt.Sprintf("/api/groups/%d", s.groupID(t, "Sports"))

	w := s.do(t, http.MethodGet, sportsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[GroupResponse](t, w).EPGFirst)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	internal := s.manager.Internal(false)
	internal.ChannelByKey(models.StorageID{BackendID: 1, UniqueID: 2}).SetEPG(&models.EPGRange{First: start.Add(24 * time.Hour), Last: start.Add(72 * time.Hour)})
	internal.ChannelByKey(models.StorageID{BackendID: 1, UniqueID: 3}).SetEPG(&models.EPGRange{First: start, Last: start.Add(48 * time.Hour)})

	w = s.do(t, http.MethodGet, sportsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	group := decode[GroupResponse](t, w)
	require.NotNil(t, group.EPGFirst)
	require.NotNil(t, group.EPGLast)
	assert.True(t, start.Equal(*group.EPGFirst))
	assert.True(t, start.Add(72*time.Hour).Equal(*group.EPGLast))
}

func TestSettings(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SettingsResponse](t, w).Settings[models.SettingStartGroupChannelNumbersFromOne])

	value := true
	w = s.do(t, http.MethodPut, "/api/settings/"+models.SettingStartGroupChannelNumbersFromOne, UpdateSettingRequest{Value: &value})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SettingsResponse](t, w).Settings[models.SettingStartGroupChannelNumbersFromOne])

	// the group renumbered before the response was written
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/members", s.groupID(t, "Sports")), nil)
	members := decode[MemberListResponse](t, w).Members
	require.Len(t, members, 2)
	assert.Equal(t, "1", members[0].Number)
	assert.Equal(t, "2", members[1].Number)

	w = s.do(t, http.MethodPut, "/api/settings/pvr.unknown", UpdateSettingRequest{Value: &value})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/settings/"+models.SettingStartGroupChannelNumbersFromOne, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackends(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/backends", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[BackendListResponse](t, w)
	require.Len(t, resp.Backends, 1)
	assert.Equal(t, "local", resp.Backends[0].Name)
	assert.True(t, resp.Backends[0].Enabled)

	enabled := false
	w = s.do(t, http.MethodPut, "/api/backends/9", UpdateBackendRequest{Enabled: &enabled})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/backends/1", UpdateBackendRequest{Enabled: &enabled})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[backend.Info](t, w).Enabled)
	assert.Zero(t, s.dir.EnabledBackendCount())
}

func TestRefresh(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/groups/refresh", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
