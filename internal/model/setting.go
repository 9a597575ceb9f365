package model

import "time"

// Setting 键值配置
type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

const (
	SettingBotEnabled           = "botEnabled"
	SettingBotLastRunAt         = "botLastRunAt"
	SettingBotLastResult        = "botLastResult"
	SettingAutoMode             = "autoMode"
	SettingAutoModeMinChars     = "autoModeMinChars"
	SettingAutoModeRequireMedia = "autoModeRequireMedia"
	SettingAutoModeLanguage     = "autoModeLanguage"
	SettingAutoModePublish      = "autoModePublish"
	SettingPublishStatus        = "publishStatus"
)

// WordPressKeys 返回某语言的 url/username/password 配置键
func WordPressKeys(lang Language) (url, username, password string) {
	prefix := "wordpressEn"
	if lang == LanguageFR {
		prefix = "wordpressFr"
	}
	return prefix + "Url", prefix + "Username", prefix + "Password"
}
