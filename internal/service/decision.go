package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/wordpress"
)

// Settings 自动模式相关配置的快照，每次扫描读取一次
type Settings struct {
	AutoMode      bool
	MinChars      int
	RequireMedia  bool
	Mode          assistant.Mode
	Publish       bool
	PublishStatus string
	Targets       map[model.Language]wordpress.Target
}

// Target 返回 lang 的发布目标，以及它能否通过发布前的校验
func (s Settings) Target(lang model.Language) (wordpress.Target, bool) {
	t, ok := s.Targets[lang]
	if !ok || t.Validate() != nil {
		return t, false
	}
	return t, true
}

// DefaultSettings 与空配置表等价
func DefaultSettings() Settings {
	return Settings{Mode: assistant.ModeBoth, Publish: true, PublishStatus: "draft"}
}

// LoadSettings 一次查询读取配置表，非法值回落默认
func LoadSettings(ctx context.Context, repo repository.SettingRepository) (Settings, error) {
	all, err := repo.All(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return SettingsFromMap(all), nil
}

func SettingsFromMap(all map[string]string) Settings {
	s := DefaultSettings()
	s.AutoMode = repository.ParseBool(all[model.SettingAutoMode], false)
	s.RequireMedia = repository.ParseBool(all[model.SettingAutoModeRequireMedia], false)
	s.Publish = repository.ParseBool(all[model.SettingAutoModePublish], true)
	if n, err := strconv.Atoi(strings.TrimSpace(all[model.SettingAutoModeMinChars])); err == nil && n > 0 {
		s.MinChars = n
	}
	if mode, err := assistant.ParseMode(all[model.SettingAutoModeLanguage]); err == nil {
		s.Mode = mode
	}
	if st := strings.ToLower(strings.TrimSpace(all[model.SettingPublishStatus])); st == "publish" {
		s.PublishStatus = st
	}

	s.Targets = make(map[model.Language]wordpress.Target, 2)
	for _, lang := range []model.Language{model.LanguageEN, model.LanguageFR} {
		urlKey, userKey, passKey := model.WordPressKeys(lang)
		s.Targets[lang] = wordpress.Target{
			URL:      wordpress.NormalizeURL(all[urlKey]),
			Username: strings.TrimSpace(all[userKey]),
			Password: all[passKey],
		}
	}
	return s
}

// Decision 单个帖子的判定结果
type Decision struct {
	Proceed    bool   `json:"proceed"`
	Reason     string `json:"reason"`
	TextLength int    `json:"text_length"`
	HasMedia   bool   `json:"has_media"`
	MeetsChars bool   `json:"meets_chars"`
	MeetsMedia bool   `json:"meets_media"`
}

const (
	ReasonAutoModeDisabled = "auto mode disabled"
	ReasonAlreadyGenerated = "already generated"
)

// Evaluate 判断帖子是否需要生成文章（无副作用）
func Evaluate(post *model.Post, s Settings) Decision {
	if !s.AutoMode {
		return Decision{Reason: ReasonAutoModeDisabled}
	}
	if post.ArticleGenerated {
		return Decision{Reason: ReasonAlreadyGenerated}
	}

	d := Decision{
		TextLength: utf8.RuneCountInString(post.Text),
		HasMedia:   post.Media.NonEmpty(),
	}
	d.MeetsChars = d.TextLength >= s.MinChars
	d.MeetsMedia = !s.RequireMedia || d.HasMedia
	d.Proceed = d.MeetsChars && d.MeetsMedia
	d.Reason = fmt.Sprintf("meetsChars=%t (%d/%d) meetsMedia=%t", d.MeetsChars, d.TextLength, s.MinChars, d.MeetsMedia)
	return d
}
