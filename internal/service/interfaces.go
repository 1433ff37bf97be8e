package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/redvelvet/internal/models"
)

// Owner 余额归属，访客为设备，注册用户为用户
type Owner struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

// DeviceOwner 设备归属
func DeviceOwner(id uint) Owner {
	return Owner{Kind: models.OwnerDevice, ID: id}
}

// UserOwner 用户归属
func UserOwner(id uint) Owner {
	return Owner{Kind: models.OwnerUser, ID: id}
}

// Key 形如 device:12
func (o Owner) Key() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// IsUser 是否注册用户
func (o Owner) IsUser() bool {
	return o.Kind == models.OwnerUser
}

// BalanceNotifier 余额变动推送
type BalanceNotifier interface {
	NotifyBalance(owner Owner, balance int64, reason string)
}

// NopNotifier 不推送
type NopNotifier struct{}

// NotifyBalance 实现 BalanceNotifier
func (NopNotifier) NotifyBalance(Owner, int64, string) {}

// Action 扣费动作
type Action struct {
	Type        string // message 或 image
	Cost        int64  // 为 0 时按当前配置的单价
	RefType     string
	RefID       string
	Description string
}

// CreditRequest 入账请求
type CreditRequest struct {
	Amount      int64
	Type        string
	RefType     string
	RefID       string
	Description string
	Metadata    models.JSONMap
}

// Costs 当前单价
type Costs struct {
	MessageCost int64 `json:"message_cost"`
	ImageCost   int64 `json:"image_cost"`
}

// HistoryPage 流水分页
type HistoryPage struct {
	Items    []*models.DiamondTransaction `json:"items"`
	Total    int64                        `json:"total"`
	Page     int                          `json:"page"`
	PageSize int                          `json:"page_size"`
}

// DiamondService 钻石账本服务
type DiamondService interface {
	Balance(ctx context.Context, owner Owner) (int64, error)
	Deduct(ctx context.Context, owner Owner, action Action) (int64, error)
	Credit(ctx context.Context, owner Owner, req CreditRequest) (int64, error)
	Refund(ctx context.Context, owner Owner, amount int64, refID string) (int64, error)
	History(ctx context.Context, owner Owner, page, pageSize int) (*HistoryPage, error)
	Transaction(ctx context.Context, owner Owner, orderNo string) (*models.DiamondTransaction, error)
	Stats(ctx context.Context, owner Owner, days int) (*LedgerStats, error)
	Costs(ctx context.Context) Costs
}

// LedgerStats 一段时间内的收支汇总
type LedgerStats struct {
	Days       int       `json:"days"`
	Since      time.Time `json:"since"`
	TotalIn    int64     `json:"total_in"`
	TotalOut   int64     `json:"total_out"`
	NetAmount  int64     `json:"net_amount"`
	EntryCount int64     `json:"entry_count"`
	Balance    int64     `json:"balance"`
}

// DeviceIdentity 请求携带的设备信息
type DeviceIdentity struct {
	Fingerprint    string `json:"fingerprint"`
	Platform       string `json:"platform"`
	IP             string `json:"ip"`
	UserAgent      string `json:"user_agent"`
	GuestSessionID string `json:"guest_session_id,omitempty"`
	Fallback       bool   `json:"fallback"` // 指纹由 IP/UA 推导
}

// GuestSessionView 访客会话视图
type GuestSessionView struct {
	SessionID              string          `json:"session_id"`
	DeviceSessionID        uint            `json:"device_session_id"`
	DeviceFingerprint      string          `json:"device_fingerprint"`
	Platform               string          `json:"platform"`
	MessageDiamonds        int64           `json:"message_diamonds"`
	HasReceivedWelcome     bool            `json:"has_received_welcome_diamonds"`
	WelcomeGranted         bool            `json:"welcome_granted"`
	IsNewDevice            bool            `json:"is_new_device"`
	PreferredGender        string          `json:"preferred_gender"`
	AccessibleCompanionIDs models.UintList `json:"accessible_companion_ids"`
	LastActivityAt         time.Time       `json:"last_activity_at"`
}

// Owner 会话的余额归属
func (v *GuestSessionView) Owner() Owner {
	return DeviceOwner(v.DeviceSessionID)
}

// GuestService 访客会话服务
type GuestService interface {
	ResolveSession(ctx context.Context, identity DeviceIdentity) (*GuestSessionView, error)
	UpdatePreferences(ctx context.Context, identity DeviceIdentity, gender string) (*GuestSessionView, error)
	CanAccessCompanion(ctx context.Context, identity DeviceIdentity, companionID uint) (bool, error)
	Refresh(ctx context.Context, identity DeviceIdentity) (*GuestSessionView, error)
}

// PurchaseRequest 购买钻石请求，Amount 单位为元
type PurchaseRequest struct {
	PaymentID   string  `json:"payment_id"`
	PackageType string  `json:"package_type"`
	Amount      float64 `json:"amount"`
}

// PurchaseResult 购买结果
type PurchaseResult struct {
	PaymentID        string `json:"payment_id"`
	OrderNo          string `json:"order_no,omitempty"`
	PackageType      string `json:"package_type"`
	DiamondsAdded    int64  `json:"diamonds_added"`
	NewBalance       int64  `json:"new_balance"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// PaymentPage 支付记录分页
type PaymentPage struct {
	Items    []*models.Payment `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// PurchaseService 钻石购买服务
type PurchaseService interface {
	Packages() []Package
	PurchaseDiamonds(ctx context.Context, owner Owner, req PurchaseRequest) (*PurchaseResult, error)
	Payments(ctx context.Context, owner Owner, page, pageSize int) (*PaymentPage, error)
}

// PremiumRequest 会员购买请求
type PremiumRequest struct {
	PaymentID string  `json:"payment_id"`
	Plan      string  `json:"plan"`
	Amount    float64 `json:"amount"`
}

// PremiumStatus 会员状态
type PremiumStatus struct {
	IsActive         bool       `json:"is_active"`
	Plan             string     `json:"plan,omitempty"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	ExpireAt         *time.Time `json:"expire_at,omitempty"`
	AlreadyProcessed bool       `json:"already_processed,omitempty"`
}

// PremiumService 会员服务
type PremiumService interface {
	Plans() []Plan
	Upgrade(ctx context.Context, userID uint, req PremiumRequest) (*PremiumStatus, error)
	Status(ctx context.Context, userID uint) (*PremiumStatus, error)
	Renew(ctx context.Context, userID uint, req PremiumRequest) (*PremiumStatus, error)
}

// AuthService 认证服务
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, token string) error
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) (*AuthResponse, error)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	IP              string `json:"-"`
	UserAgent       string `json:"-"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=20"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Nickname  string `json:"nickname"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Account   string `json:"account" binding:"required"` // 用户名或邮箱
	Password  string `json:"password" binding:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User            *models.User `json:"user"`
	MessageDiamonds int64        `json:"message_diamonds"`
	AccessToken     string       `json:"access_token"`
	RefreshToken    string       `json:"refresh_token"`
	ExpiresIn       int64        `json:"expires_in"`
	TokenType       string       `json:"token_type"`
}

// TokenClaims 令牌信息
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// UserProfile 用户资料
type UserProfile struct {
	User            *models.User   `json:"user"`
	MessageDiamonds int64          `json:"message_diamonds"`
	MessageCount    int64          `json:"message_count"` // 已保存的聊天消息数
	Premium         *PremiumStatus `json:"premium"`
}

// PreferencesUpdate 偏好更新，nil 字段不修改
type PreferencesUpdate struct {
	PreferredGender *string `json:"preferred_gender"`
	Theme           *string `json:"theme"`
}

// ProfileUpdate 资料更新，nil 字段不修改，密码不能通过这里修改
type ProfileUpdate struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
	Bio      *string `json:"bio"`
}

// UserService 用户服务
type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	GetProfile(ctx context.Context, userID uint) (*UserProfile, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*UserProfile, error)
	GetPreferences(ctx context.Context, userID uint) (*models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, userID uint, update PreferencesUpdate) (*models.UserPreferences, error)
}

// CompanionQuery 伴侣列表查询
type CompanionQuery struct {
	Gender  string `form:"gender"`
	Premium *bool  `form:"premium"`
	Tier    string `form:"tier"`
	Search  string `form:"search"`
	Sort    string `form:"sort"` // name、newest、popular，默认按ID
}

// CompanionService 伴侣目录服务
type CompanionService interface {
	List(ctx context.Context, query CompanionQuery) ([]*models.Companion, error)
	Get(ctx context.Context, id uint) (*models.Companion, error)
	Create(ctx context.Context, companion *models.Companion) error
	AccessibleIDs(ctx context.Context, gender string) (models.UintList, error)
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	CompanionID   uint   `json:"companion_id"`
	Content       string `json:"content"`
	EnforceAccess bool   `json:"-"` // 访客需校验可访问伴侣
}

// SendMessageResult 发送结果
type SendMessageResult struct {
	UserMessage       *models.ChatMessage `json:"user_message"`
	Reply             *models.ChatMessage `json:"reply"`
	DiamondsUsed      int64               `json:"diamonds_used"`
	RemainingDiamonds int64               `json:"remaining_diamonds"`
}

// GenerateImageRequest 生成图片请求
type GenerateImageRequest struct {
	CompanionID   uint   `json:"companion_id"`
	Prompt        string `json:"prompt"`
	EnforceAccess bool   `json:"-"`
}

// GenerateImageResult 生成结果
type GenerateImageResult struct {
	ImageURL          string              `json:"image_url"`
	Message           *models.ChatMessage `json:"message"`
	DiamondsUsed      int64               `json:"diamonds_used"`
	RemainingDiamonds int64               `json:"remaining_diamonds"`
}

// SaveMessageRequest 保存消息请求
type SaveMessageRequest struct {
	CompanionID      uint   `json:"companion_id"`
	Content          string `json:"content"`
	Sender           string `json:"sender"`
	EmotionType      string `json:"emotion_type"`
	EmotionIntensity string `json:"emotion_intensity"`
	ImageURL         string `json:"image_url"`
}

// ChatService 聊天服务
type ChatService interface {
	SendMessage(ctx context.Context, owner Owner, req SendMessageRequest) (*SendMessageResult, error)
	GenerateImage(ctx context.Context, owner Owner, req GenerateImageRequest) (*GenerateImageResult, error)
	SaveMessage(ctx context.Context, owner Owner, req SaveMessageRequest) (*models.ChatMessage, error)
	History(ctx context.Context, owner Owner, companionID uint) ([]*models.ChatMessage, error)
	Clear(ctx context.Context, owner Owner) (int64, error)
	ClearCompanion(ctx context.Context, owner Owner, companionID uint) (int64, error)
	Memories(ctx context.Context, owner Owner, companionID uint) (*MemoryList, error)
}

// MemoryMetadata 记忆条目的来源信息
type MemoryMetadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Speaker     string    `json:"speaker"`
	CompanionID uint      `json:"companion_id"`
	OwnerType   string    `json:"owner_type"`
	OwnerID     uint      `json:"owner_id"`
}

// MemoryEntry 伴侣回复时可参考的一条记忆
type MemoryEntry struct {
	ID       uint           `json:"id"`
	Text     string         `json:"text"`
	Metadata MemoryMetadata `json:"metadata"`
}

// MemoryList 最近的记忆，条数受伴侣设置的 memory_retention 限制
type MemoryList struct {
	CompanionID uint          `json:"companion_id"`
	Retention   int           `json:"retention"`
	Items       []MemoryEntry `json:"items"`
}

// CompanionSettingsInput 整体保存伴侣设置，缺省字段取默认值
type CompanionSettingsInput struct {
	PersonalityTraits      models.JSONMap    `json:"personality_traits"`
	RelationshipType       string            `json:"relationship_type"`
	Scenario               string            `json:"scenario"`
	InterestTopics         models.StringList `json:"interest_topics"`
	AppearancePreferences  models.JSONMap    `json:"appearance_preferences"`
	ConversationStyle      string            `json:"conversation_style"`
	EmotionalResponseLevel *int              `json:"emotional_response_level"`
	VoiceSettings          models.JSONMap    `json:"voice_settings"`
	MemoryRetention        *int              `json:"memory_retention"`
}

// CompanionSettingsPatch 部分更新伴侣设置，nil 字段不修改
type CompanionSettingsPatch struct {
	PersonalityTraits      models.JSONMap     `json:"personality_traits"`
	RelationshipType       *string            `json:"relationship_type"`
	Scenario               *string            `json:"scenario"`
	InterestTopics         *models.StringList `json:"interest_topics"`
	AppearancePreferences  models.JSONMap     `json:"appearance_preferences"`
	ConversationStyle      *string            `json:"conversation_style"`
	EmotionalResponseLevel *int               `json:"emotional_response_level"`
	VoiceSettings          models.JSONMap     `json:"voice_settings"`
	MemoryRetention        *int               `json:"memory_retention"`
}

// CompanionSettingsService 伴侣个性化设置
type CompanionSettingsService interface {
	Get(ctx context.Context, owner Owner, companionID uint) (*models.CompanionSettings, error)
	Save(ctx context.Context, owner Owner, companionID uint, input CompanionSettingsInput) (*models.CompanionSettings, error)
	Patch(ctx context.Context, owner Owner, companionID uint, patch CompanionSettingsPatch) (*models.CompanionSettings, error)
}

// InteractionRequest 记录一次互动
type InteractionRequest struct {
	CompanionID      uint   `json:"companion_id"`
	Date             string `json:"date"` // YYYY-MM-DD，为空时取当天
	Hour             *int   `json:"hour"` // 0-23，为空时取当前小时
	MessageCount     int    `json:"message_count"`
	EmotionType      string `json:"emotion_type"`
	EmotionIntensity string `json:"emotion_intensity"`
	ResponseTimeMs   *int   `json:"response_time_ms"`
}

// Heatmap 日期到24小时消息数的映射
type Heatmap map[string][]int64

// InteractionService 互动记录与热力图
type InteractionService interface {
	Record(ctx context.Context, owner *Owner, req InteractionRequest) (*models.Interaction, error)
	Heatmap(ctx context.Context, companionID uint, startDate, endDate string) (Heatmap, error)
}
