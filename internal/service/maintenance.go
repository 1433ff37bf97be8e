package service

import (
	"context"
	"time"

	"github.com/wfunc/redvelvet/internal/repository"
	"go.uber.org/zap"
)

const activeDeviceWindow = 24 * time.Hour

// MaintenanceReport 一轮清理的结果
type MaintenanceReport struct {
	ExpiredUserSessions   int64 `json:"expired_user_sessions"`
	InactiveGuestSessions int64 `json:"inactive_guest_sessions"`
	ActiveDevices         int64 `json:"active_devices"`
}

// Maintenance 定期清理过期会话并刷新系统配置缓存
type Maintenance struct {
	repos          *repository.Manager
	guestRetention time.Duration
	now            func() time.Time
	log            *zap.Logger
}

// NewMaintenance guestRetention 为访客会话无活动多久后删除，零值使用30天
func NewMaintenance(repos *repository.Manager, guestRetention time.Duration, log *zap.Logger) *Maintenance {
	if guestRetention <= 0 {
		guestRetention = 30 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintenance{repos: repos, guestRetention: guestRetention, now: time.Now, log: log}
}

// RunOnce 执行一轮清理，设备会话与余额永不删除
func (m *Maintenance) RunOnce(ctx context.Context) (*MaintenanceReport, error) {
	now := m.now()
	report := &MaintenanceReport{}

	expired, err := m.repos.UserSession().CleanupExpired(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	report.ExpiredUserSessions = expired

	inactive, err := m.repos.GuestSession().DeleteInactive(ctx, now.Add(-m.guestRetention))
	if err != nil {
		return nil, storageErr(err)
	}
	report.InactiveGuestSessions = inactive

	active, err := m.repos.DeviceSession().CountActiveSince(ctx, now.Add(-activeDeviceWindow))
	if err != nil {
		return nil, storageErr(err)
	}
	report.ActiveDevices = active

	if err := m.repos.SystemConfig().RefreshCache(ctx); err != nil {
		m.log.Warn("刷新系统配置缓存失败", zap.Error(err))
	}

	m.log.Info("定期清理完成",
		zap.Int64("expired_user_sessions", report.ExpiredUserSessions),
		zap.Int64("inactive_guest_sessions", report.InactiveGuestSessions),
		zap.Int64("active_devices_24h", report.ActiveDevices),
	)
	return report, nil
}

// Run 按间隔循环清理，ctx 取消后返回
func (m *Maintenance) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("定期清理失败", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
