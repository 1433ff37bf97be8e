package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/redvelvet/internal/errors"
	"github.com/wfunc/redvelvet/internal/models"
)

// PersonalizationTestSuite 伴侣设置、互动统计与记忆
type PersonalizationTestSuite struct {
	suite.Suite
	env   *testEnv
	ctx   context.Context
	owner Owner
}

func (suite *PersonalizationTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
	suite.owner = suite.env.guest(suite.T(), "fp-personal").Owner()
}

func intPtr(v int) *int { return &v }

func (suite *PersonalizationTestSuite) TestSettingsDefaults() {
	settings, err := suite.env.services.Settings.Get(suite.ctx, suite.owner, 1)
	suite.Require().NoError(err)
	suite.Equal(models.DefaultRelationshipType, settings.RelationshipType)
	suite.Equal(models.DefaultConversationStyle, settings.ConversationStyle)
	suite.Equal(models.DefaultEmotionalResponseLevel, settings.EmotionalResponseLevel)
	suite.Equal(models.DefaultMemoryRetention, settings.MemoryRetention)
	suite.NotNil(settings.PersonalityTraits)
	suite.NotNil(settings.InterestTopics)
	suite.Zero(settings.ID, "未保存")

	_, err = suite.env.services.Settings.Get(suite.ctx, suite.owner, 999)
	suite.True(apperrors.Is(err, apperrors.ErrCompanionNotFound))
}

func (suite *PersonalizationTestSuite) TestSaveReplacesAndPatchMerges() {
	saved, err := suite.env.services.Settings.Save(suite.ctx, suite.owner, 1, CompanionSettingsInput{
		PersonalityTraits:      models.JSONMap{"playful": 80},
		RelationshipType:       "friend",
		Scenario:               "咖啡馆偶遇",
		InterestTopics:         models.StringList{"music", "travel"},
		EmotionalResponseLevel: intPtr(70),
		MemoryRetention:        intPtr(20),
	})
	suite.Require().NoError(err)
	suite.NotZero(saved.ID)
	suite.Equal("friend", saved.RelationshipType)
	suite.Equal(models.DefaultConversationStyle, saved.ConversationStyle)
	suite.Equal([]string{"music", "travel"}, []string(saved.InterestTopics))
	suite.Equal(20, saved.MemoryRetention)

	suite.Run("部分更新保留其他字段", func() {
		style := "flirty"
		patched, err := suite.env.services.Settings.Patch(suite.ctx, suite.owner, 1, CompanionSettingsPatch{ConversationStyle: &style})
		suite.Require().NoError(err)
		suite.Equal(saved.ID, patched.ID)
		suite.Equal("flirty", patched.ConversationStyle)
		suite.Equal("friend", patched.RelationshipType)
		suite.Equal("咖啡馆偶遇", patched.Scenario)
		suite.Equal(70, patched.EmotionalResponseLevel)
	})

	suite.Run("整体保存恢复缺省字段", func() {
		replaced, err := suite.env.services.Settings.Save(suite.ctx, suite.owner, 1, CompanionSettingsInput{RelationshipType: "partner"})
		suite.Require().NoError(err)
		suite.Equal(saved.ID, replaced.ID)
		suite.Equal(models.DefaultConversationStyle, replaced.ConversationStyle)
		suite.Empty(replaced.Scenario)
		suite.Empty(replaced.InterestTopics)
		suite.Equal(models.DefaultMemoryRetention, replaced.MemoryRetention)
	})

	suite.Run("不同身份互不影响", func() {
		other := suite.env.guest(suite.T(), "fp-personal-other").Owner()
		settings, err := suite.env.services.Settings.Get(suite.ctx, other, 1)
		suite.Require().NoError(err)
		suite.Equal(models.DefaultRelationshipType, settings.RelationshipType)
	})
}

func (suite *PersonalizationTestSuite) TestPatchCreatesFromDefaults() {
	level := 10
	patched, err := suite.env.services.Settings.Patch(suite.ctx, suite.owner, 2, CompanionSettingsPatch{EmotionalResponseLevel: &level})
	suite.Require().NoError(err)
	suite.NotZero(patched.ID)
	suite.Equal(10, patched.EmotionalResponseLevel)
	suite.Equal(models.DefaultRelationshipType, patched.RelationshipType)
}

func (suite *PersonalizationTestSuite) TestSettingsValidation() {
	empty := ""
	topics := make(models.StringList, 21)
	for i := range topics {
		topics[i] = fmt.Sprintf("t%d", i)
	}

	cases := []struct {
		name  string
		patch CompanionSettingsPatch
	}{
		{"关系类型为空", CompanionSettingsPatch{RelationshipType: &empty}},
		{"情绪强度越界", CompanionSettingsPatch{EmotionalResponseLevel: intPtr(101)}},
		{"记忆条数为零", CompanionSettingsPatch{MemoryRetention: intPtr(0)}},
		{"记忆条数过多", CompanionSettingsPatch{MemoryRetention: intPtr(101)}},
		{"兴趣过多", CompanionSettingsPatch{InterestTopics: &topics}},
		{"场景过长", CompanionSettingsPatch{Scenario: strPtr(strings.Repeat("长", 2001))}},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := suite.env.services.Settings.Patch(suite.ctx, suite.owner, 1, tc.patch)
			suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))
		})
	}

	_, err := suite.env.services.Settings.Save(suite.ctx, suite.owner, 999, CompanionSettingsInput{})
	suite.True(apperrors.Is(err, apperrors.ErrCompanionNotFound))
}

func (suite *PersonalizationTestSuite) TestMemoriesFollowRetention() {
	for i := 0; i < 4; i++ {
		_, err := suite.env.services.Chat.SendMessage(suite.ctx, suite.owner, SendMessageRequest{CompanionID: 1, Content: fmt.Sprintf("msg-%d", i)})
		suite.Require().NoError(err)
	}

	memories, err := suite.env.services.Chat.Memories(suite.ctx, suite.owner, 1)
	suite.Require().NoError(err)
	suite.Equal(models.DefaultMemoryRetention, memories.Retention)
	suite.Len(memories.Items, 8)

	_, err = suite.env.services.Settings.Patch(suite.ctx, suite.owner, 1, CompanionSettingsPatch{MemoryRetention: intPtr(3)})
	suite.Require().NoError(err)

	memories, err = suite.env.services.Chat.Memories(suite.ctx, suite.owner, 1)
	suite.Require().NoError(err)
	suite.Equal(3, memories.Retention)
	suite.Len(memories.Items, 3)
	for _, item := range memories.Items {
		suite.Equal(uint(1), item.Metadata.CompanionID)
		suite.Equal(suite.owner.Kind, item.Metadata.OwnerType)
		suite.NotEmpty(item.Text)
	}

	deleted, err := suite.env.services.Chat.ClearCompanion(suite.ctx, suite.owner, 1)
	suite.Require().NoError(err)
	suite.Equal(int64(8), deleted)

	memories, err = suite.env.services.Chat.Memories(suite.ctx, suite.owner, 1)
	suite.Require().NoError(err)
	suite.Empty(memories.Items)

	_, err = suite.env.services.Chat.Memories(suite.ctx, suite.owner, 999)
	suite.True(apperrors.Is(err, apperrors.ErrCompanionNotFound))
}

func (suite *PersonalizationTestSuite) TestRecordInteraction() {
	svc := suite.env.services.Interaction.(*interactionService)
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 14, 30, 0, 0, time.Local) }

	interaction, err := suite.env.services.Interaction.Record(suite.ctx, &suite.owner, InteractionRequest{CompanionID: 1, EmotionType: "happy"})
	suite.Require().NoError(err)
	suite.NotZero(interaction.ID)
	suite.Equal("2026-03-09", interaction.Date)
	suite.Equal(14, interaction.Hour)
	suite.Equal(1, interaction.MessageCount)
	suite.Equal(suite.owner.Kind, interaction.OwnerType)

	anonymous, err := suite.env.services.Interaction.Record(suite.ctx, nil, InteractionRequest{CompanionID: 1, Date: "2026-03-08", Hour: intPtr(0), MessageCount: 3})
	suite.Require().NoError(err)
	suite.Empty(anonymous.OwnerType)
	suite.Zero(anonymous.OwnerID)

	cases := []struct {
		name string
		req  InteractionRequest
		code apperrors.ErrorCode
	}{
		{"缺少伴侣", InteractionRequest{}, apperrors.ErrInvalidParam},
		{"伴侣不存在", InteractionRequest{CompanionID: 999}, apperrors.ErrCompanionNotFound},
		{"日期格式错误", InteractionRequest{CompanionID: 1, Date: "03/09/2026"}, apperrors.ErrInvalidParam},
		{"小时越界", InteractionRequest{CompanionID: 1, Hour: intPtr(24)}, apperrors.ErrInvalidParam},
		{"消息数为负", InteractionRequest{CompanionID: 1, MessageCount: -1}, apperrors.ErrInvalidParam},
		{"响应时间为负", InteractionRequest{CompanionID: 1, ResponseTimeMs: intPtr(-5)}, apperrors.ErrInvalidParam},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := suite.env.services.Interaction.Record(suite.ctx, &suite.owner, tc.req)
			suite.True(apperrors.Is(err, tc.code))
		})
	}
}

func (suite *PersonalizationTestSuite) TestHeatmap() {
	svc := suite.env.services.Interaction.(*interactionService)
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 20, 0, 0, 0, time.Local) }

	record := func(companionID uint, date string, hour, count int) {
		_, err := suite.env.services.Interaction.Record(suite.ctx, &suite.owner, InteractionRequest{
			CompanionID: companionID, Date: date, Hour: intPtr(hour), MessageCount: count,
		})
		suite.Require().NoError(err)
	}
	record(1, "2026-03-09", 20, 2)
	record(1, "2026-03-09", 20, 3)
	record(1, "2026-03-03", 8, 1)
	record(1, "2026-03-02", 8, 9)
	record(2, "2026-03-09", 20, 7)

	suite.Run("默认最近7天", func() {
		heatmap, err := suite.env.services.Interaction.Heatmap(suite.ctx, 1, "", "")
		suite.Require().NoError(err)
		suite.Len(heatmap, 7)
		suite.Len(heatmap["2026-03-09"], 24)
		suite.Equal(int64(5), heatmap["2026-03-09"][20])
		suite.Equal(int64(1), heatmap["2026-03-03"][8])
		suite.NotContains(heatmap, "2026-03-02")
		suite.Equal(make([]int64, 24), heatmap["2026-03-05"])
	})

	suite.Run("指定区间", func() {
		heatmap, err := suite.env.services.Interaction.Heatmap(suite.ctx, 1, "2026-03-02", "2026-03-03")
		suite.Require().NoError(err)
		suite.Len(heatmap, 2)
		suite.Equal(int64(9), heatmap["2026-03-02"][8])
	})

	suite.Run("参数错误", func() {
		_, err := suite.env.services.Interaction.Heatmap(suite.ctx, 1, "2026-03-09", "2026-03-01")
		suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))

		_, err = suite.env.services.Interaction.Heatmap(suite.ctx, 1, "bad", "")
		suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))

		_, err = suite.env.services.Interaction.Heatmap(suite.ctx, 1, "2024-01-01", "2026-03-09")
		suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))
	})
}

func (suite *PersonalizationTestSuite) TestSendMessageCountsTowardHeatmap() {
	_, err := suite.env.services.Chat.SendMessage(suite.ctx, suite.owner, SendMessageRequest{CompanionID: 3, Content: "hi"})
	suite.Require().NoError(err)

	heatmap, err := suite.env.services.Interaction.Heatmap(suite.ctx, 3, "", "")
	suite.Require().NoError(err)
	now := time.Now()
	suite.Equal(int64(1), heatmap[now.Format(dateLayout)][now.Hour()])
}

func TestPersonalizationSuite(t *testing.T) {
	suite.Run(t, new(PersonalizationTestSuite))
}
