package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/lineup/internal/models"
)

type memoryStore struct {
	mu    sync.Mutex
	flags map[string]bool
	err   error
}

func (s *memoryStore) Flags(context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]bool, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out, nil
}

func (s *memoryStore) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.flags == nil {
		s.flags = make(map[string]bool)
	}
	s.flags[key] = value
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(models.SettingSyncChannelGroups, true)
	v.SetDefault(models.SettingBackendChannelOrder, true)
	return v
}

func TestProvider_InitialValues(t *testing.T) {
	p := New(newViper())

	assert.True(t, p.Bool(models.SettingSyncChannelGroups))
	assert.True(t, p.Bool(models.SettingBackendChannelOrder))
	assert.False(t, p.Bool(models.SettingStartGroupChannelNumbersFromOne))
	assert.False(t, p.Bool("pvr.unknown"))
	assert.Len(t, p.Flags(), len(models.PolicySettingKeys))
}

func TestProvider_SetNotifiesInOrder(t *testing.T) {
	p := New(newViper())
	ctx := context.Background()

	var calls []string
	p.Subscribe(func(key string) { calls = append(calls, "first:"+key) })
	p.Subscribe(func(key string) { calls = append(calls, "second:"+key) }, models.SettingStartGroupChannelNumbersFromOne)
	p.Subscribe(func(key string) { calls = append(calls, "third:"+key) }, models.SettingBackendChannelOrder)

	require.NoError(t, p.Set(ctx, models.SettingStartGroupChannelNumbersFromOne, true))
	assert.True(t, p.Bool(models.SettingStartGroupChannelNumbersFromOne))
	assert.Equal(t, []string{
		"first:" + models.SettingStartGroupChannelNumbersFromOne,
		"second:" + models.SettingStartGroupChannelNumbersFromOne,
	}, calls)

	// setting the same value again is not a change
	calls = nil
	require.NoError(t, p.Set(ctx, models.SettingStartGroupChannelNumbersFromOne, true))
	assert.Empty(t, calls)
}

func TestProvider_CallbackMayReadFlags(t *testing.T) {
	p := New(newViper())

	var seen bool
	p.Subscribe(func(key string) { seen = p.Bool(key) })
	require.NoError(t, p.Set(context.Background(), models.SettingUseBackendChannelNumbers, true))
	assert.True(t, seen)
}

func TestProvider_Unsubscribe(t *testing.T) {
	p := New(newViper())
	calls := 0
	id := p.Subscribe(func(string) { calls++ })

	p.Unsubscribe(id)
	p.Unsubscribe(id)
	p.Unsubscribe(12345)

	require.NoError(t, p.Set(context.Background(), models.SettingBackendChannelOrder, false))
	assert.Zero(t, calls)
}

func TestProvider_SetUnknownKey(t *testing.T) {
	p := New(newViper())
	err := p.Set(context.Background(), "pvr.unknown", true)
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestProvider_StorePersistsAndSeeds(t *testing.T) {
	store := &memoryStore{flags: map[string]bool{
		models.SettingSyncChannelGroups:        true,
		models.SettingBackendChannelOrder:      false,
		models.SettingUseBackendChannelNumbers: true,
	}}
	p := New(newViper(), WithStore(store))

	var changed []string
	p.Subscribe(func(key string) { changed = append(changed, key) })

	require.NoError(t, p.Load(context.Background()))
	assert.False(t, p.Bool(models.SettingBackendChannelOrder))
	assert.True(t, p.Bool(models.SettingUseBackendChannelNumbers))
	assert.Equal(t, []string{models.SettingBackendChannelOrder, models.SettingUseBackendChannelNumbers}, changed)

	require.NoError(t, p.Set(context.Background(), models.SettingStartGroupChannelNumbersFromOne, true))
	assert.True(t, store.flags[models.SettingStartGroupChannelNumbersFromOne])
}

func TestProvider_StoreFailureKeepsValue(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	p := New(newViper(), WithStore(store))

	assert.Error(t, p.Load(context.Background()))
	assert.Error(t, p.Set(context.Background(), models.SettingBackendChannelOrder, false))
	assert.True(t, p.Bool(models.SettingBackendChannelOrder))
}

func TestProvider_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("pvr:\n  backendchannelorder: true\n  usebackendchannelnumbers: false\n")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	p := New(v)
	var changed []string
	p.Subscribe(func(key string) { changed = append(changed, key) })

	// a runtime change survives a reload that does not touch the key
	require.NoError(t, p.Set(context.Background(), models.SettingBackendChannelOrder, false))
	changed = nil

	write("pvr:\n  backendchannelorder: true\n  usebackendchannelnumbers: true\n")
	require.NoError(t, v.ReadInConfig())
	p.Reload()

	assert.Equal(t, []string{models.SettingUseBackendChannelNumbers}, changed)
	assert.True(t, p.Bool(models.SettingUseBackendChannelNumbers))
	assert.False(t, p.Bool(models.SettingBackendChannelOrder))
}
