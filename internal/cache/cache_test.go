package cache

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersite/internal/models"
)

func TestMemoryOnlyRoundTrip(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	type payload struct {
		Prefecture string
		City       string
	}
	c.Set(ctx, "postal:1000001", payload{"東京都", "千代田区"}, time.Minute)

	var got payload
	require.True(t, c.Get(ctx, "postal:1000001", &got))
	assert.Equal(t, "千代田区", got.City)

	c.Delete(ctx, "postal:1000001")
	assert.False(t, c.Get(ctx, "postal:1000001", &got))
}

func TestEntriesExpire(t *testing.T) {
	c := New(nil)
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(context.Background(), "k", 1, time.Minute)
	var v int
	assert.True(t, c.Get(context.Background(), "k", &v))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Get(context.Background(), "k", &v))
}

func TestConnectWithoutURL(t *testing.T) {
	client, err := Connect(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, client)

	_, err = Connect(context.Background(), "::not a url")
	assert.Error(t, err)
}

type countingSettings struct {
	s     models.SiteSettings
	gets  int
	saves int
	err   error
}

func (c *countingSettings) Get(context.Context) (*models.SiteSettings, error) {
	c.gets++
	cp := c.s
	return &cp, nil
}

func (c *countingSettings) Save(_ context.Context, s *models.SiteSettings) error {
	c.saves++
	if c.err != nil {
		return c.err
	}
	c.s = *s
	return nil
}

func TestSettingsReadThrough(t *testing.T) {
	store := &countingSettings{s: models.DefaultSiteSettings()}
	s := NewSettings(store, New(nil))
	ctx := context.Background()

	first, err := s.Get(ctx)
	require.NoError(t, err)
	_, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, "オーダーサイト", first.SiteName)

	updated := *first
	updated.SiteName = "資材オーダー"
	updated.MaintenanceMode = true
	require.NoError(t, s.Save(ctx, &updated))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "資材オーダー", got.SiteName)
	assert.True(t, got.MaintenanceMode)
	assert.Equal(t, 1, store.gets)
}

func TestSettingsSaveFailureDropsCache(t *testing.T) {
	store := &countingSettings{s: models.DefaultSiteSettings()}
	s := NewSettings(store, New(nil))
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.NoError(t, err)

	store.err = errors.New("write failed")
	assert.Error(t, s.Save(ctx, &models.SiteSettings{SiteName: "x"}))

	_, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
}

// recordingHook answers every command locally and keeps what was sent.
type recordingHook struct {
	mu   sync.Mutex
	cmds []string
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("no network in tests")
	}
}

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		var parts []string
		for _, a := range cmd.Args() {
			if s, ok := a.(string); ok {
				parts = append(parts, s)
			}
		}
		h.cmds = append(h.cmds, strings.Join(parts, " "))
		h.mu.Unlock()

		if cmd.Name() == "get" {
			cmd.SetErr(redis.Nil)
			return redis.Nil
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *recordingHook) sent(prefix string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.cmds {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func TestSettingsNeverWriteSecretsToRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	hook := &recordingHook{}
	client.AddHook(hook)

	site := models.DefaultSiteSettings()
	site.SendGridAPIKey = "SG.live-key"
	site.SMTPPassword = "smtp-pass"
	store := &countingSettings{s: site}
	s := NewSettings(store, New(client))
	ctx := context.Background()

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SG.live-key", got.SendGridAPIKey)

	got.SiteName = "資材オーダー"
	require.NoError(t, s.Save(ctx, got))

	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "資材オーダー", got.SiteName)
	assert.Equal(t, "smtp-pass", got.SMTPPassword)
	assert.Equal(t, 1, store.gets)

	assert.Empty(t, hook.sent("set"))
	assert.Empty(t, hook.sent("get"))
	assert.Equal(t, []string{"del " + keyPrefix + settingsKey}, hook.sent("del"))
}

func TestSharedEntriesStillReachRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	hook := &recordingHook{}
	client.AddHook(hook)

	c := New(client)
	c.Set(context.Background(), "postal:1000001", "千代田区", time.Minute)

	require.Len(t, hook.sent("set"), 1)
	assert.True(t, strings.HasPrefix(hook.sent("set")[0], "set "+keyPrefix+"postal:1000001"))
}
