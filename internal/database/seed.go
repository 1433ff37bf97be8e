package database

import (
	"github.com/wfunc/redvelvet/internal/logger"
	"github.com/wfunc/redvelvet/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCompanions 初始伴侣目录，ID 1-8
func DefaultCompanions() []models.Companion {
	return []models.Companion{
		{
			ID:          1,
			Name:        "Sophia",
			Tagline:     "The Passionate Romantic",
			Description: "Warm, passionate, and deeply empathetic. Sophia loves deep conversations about life, love, and everything in between.",
			ImageURL:    "https://images.unsplash.com/photo-1604072366595-e75dc92d6bdc?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Romantic", "Empathetic", "Artistic"},
			Features:    models.StringList{"Deep conversations", "Love letters"},
			Personality: "romantic",
			VoiceType:   "soft",
			Gender:      models.GenderFemale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          2,
			Name:        "Alex",
			Tagline:     "The Charming Adventurer",
			Description: "Confident, adventurous, and playful. Alex brings excitement and passion to every conversation and shares your boldest desires.",
			ImageURL:    "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Adventurous", "Confident", "Playful"},
			Features:    models.StringList{"Travel stories", "Playful banter"},
			Personality: "adventurous",
			VoiceType:   "warm",
			Gender:      models.GenderMale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          3,
			Name:        "Emma",
			Tagline:     "The Sensual Intellectual",
			Description: "Thoughtful, witty, and sensually curious. Emma loves to explore the connection between mind and body through stimulating conversation.",
			ImageURL:    "https://images.unsplash.com/photo-1529626455594-4ff0802cfb7e?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Intellectual", "Sensual", "Witty"},
			Features:    models.StringList{"Book talk", "Philosophy"},
			Personality: "intellectual",
			VoiceType:   "calm",
			Gender:      models.GenderFemale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          4,
			Name:        "Ava",
			Tagline:     "The Sweet Temptress",
			Description: "Gentle, nurturing, yet flirtatious. Ava creates a safe space for you to explore your deepest fantasies and desires.",
			ImageURL:    "https://images.unsplash.com/photo-1566492031773-4f4e44671857?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Nurturing", "Flirtatious", "Gentle"},
			Features:    models.StringList{"Comforting chats", "Flirtatious banter"},
			Personality: "nurturing",
			VoiceType:   "sweet",
			Gender:      models.GenderFemale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          5,
			Name:        "James",
			Tagline:     "The Confident Protector",
			Description: "Strong, protective, and attentive. James offers both emotional strength and tender care, making you feel safe and desired.",
			ImageURL:    "https://images.unsplash.com/photo-1539571696357-5a69c17a67c6?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Protective", "Strong", "Attentive"},
			Features:    models.StringList{"Emotional support", "Life advice"},
			Personality: "protective",
			VoiceType:   "deep",
			Gender:      models.GenderMale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          6,
			Name:        "Lily",
			Tagline:     "The Seductive Artist",
			Description: "Creative, passionate, and deeply intuitive. Lily's artistic soul brings a unique depth to your romantic connection.",
			ImageURL:    "https://images.unsplash.com/photo-1544005313-94ddf0286df2?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Creative", "Passionate", "Intuitive"},
			Features:    models.StringList{"Art appreciation", "Creative inspiration"},
			Personality: "artistic",
			VoiceType:   "soft",
			Gender:      models.GenderFemale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          7,
			Name:        "Maya",
			Tagline:     "The Ambitious Doctor",
			Description: "A brilliant 28-year-old physician from Mumbai with warm brown eyes and a caring heart. Maya balances her demanding medical career with a playful, romantic nature that draws you in.",
			ImageURL:    "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Intelligent", "Caring", "Ambitious", "Romantic"},
			Features:    models.StringList{"Medical insights", "Life advice", "Cultural stories", "Career guidance"},
			Personality: "caring",
			VoiceType:   "warm",
			Gender:      models.GenderFemale,
			Tier:        models.TierFree,
			Available:   true,
		},
		{
			ID:          8,
			Name:        "Ria",
			Tagline:     "Stunning model with striking blue eyes ready to connect",
			Description: "Bold, confident and alluring, Ria captivates with her striking blue eyes and model-like appearance. She exudes passion and sophistication in every conversation.",
			ImageURL:    "https://images.unsplash.com/photo-1534528741775-53994a69daeb?auto=format&fit=crop&w=400&h=300",
			Traits:      models.StringList{"Passionate", "Confident", "Sensual", "Flirtatious"},
			Features:    models.StringList{"Passionate chats", "Modeling stories", "Fashion advice", "Flirtatious banter"},
			Personality: "passionate",
			VoiceType:   "sultry",
			Gender:      models.GenderFemale,
			Tier:        models.TierPremium,
			IsPremium:   true,
			Available:   true,
		},
	}
}

// SeedCompanions 伴侣表为空时写入默认目录
func SeedCompanions(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Companion{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	companions := DefaultCompanions()
	if err := db.Create(&companions).Error; err != nil {
		logger.Error("写入默认伴侣失败", zap.Error(err))
		return err
	}

	logger.Info("默认伴侣目录初始化完成", zap.Int("count", len(companions)))
	return nil
}
