package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/redvelvet/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaintenanceRunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := env.guest(t, "fp-stale")
	fresh := env.guest(t, "fp-fresh")
	require.NoError(t, env.db.Model(&models.GuestSession{}).
		Where("session_id = ?", stale.SessionID).
		Update("last_activity_at", time.Now().Add(-40*24*time.Hour)).Error)

	resp, err := env.services.Auth.Register(ctx, &RegisterRequest{
		Username: "olivia", Email: "olivia@example.com", Password: "password123",
	})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.UserSession{}).
		Where("user_id = ?", resp.User.ID).
		Update("expire_at", time.Now().Add(-time.Minute)).Error)

	core, logs := observer.New(zap.InfoLevel)
	m := NewMaintenance(env.repos, 30*24*time.Hour, zap.New(core))

	report, err := m.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ExpiredUserSessions)
	assert.Equal(t, int64(1), report.InactiveGuestSessions)
	assert.Equal(t, int64(2), report.ActiveDevices)
	assert.Equal(t, 1, logs.FilterMessage("定期清理完成").Len())

	t.Run("设备余额不受影响", func(t *testing.T) {
		balance, err := env.services.Diamond.Balance(ctx, stale.Owner())
		require.NoError(t, err)
		assert.Equal(t, int64(25), balance)
	})

	t.Run("过期会话需重新签发", func(t *testing.T) {
		_, err := env.services.Auth.ValidateToken(ctx, resp.AccessToken)
		assert.Error(t, err)

		view, err := env.services.Guest.ResolveSession(ctx, DeviceIdentity{
			Fingerprint:    "fp-stale",
			Platform:       models.PlatformWeb,
			GuestSessionID: stale.SessionID,
		})
		require.NoError(t, err)
		assert.Equal(t, stale.Owner(), view.Owner())
	})

	t.Run("活跃会话保留", func(t *testing.T) {
		again, err := m.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, again.InactiveGuestSessions)

		view, err := env.services.Guest.ResolveSession(ctx, DeviceIdentity{
			Fingerprint:    "fp-fresh",
			Platform:       models.PlatformWeb,
			GuestSessionID: fresh.SessionID,
		})
		require.NoError(t, err)
		assert.Equal(t, fresh.SessionID, view.SessionID)
	})
}

func TestMaintenanceRunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		env.services.Maintenance.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("清理循环未退出")
	}
}
