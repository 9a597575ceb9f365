package model

import "time"

// Link 帖子中提取的链接
type Link struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url,omitempty"`
	DisplayURL  string `json:"display_url,omitempty"`
}

// Mention 帖子中提及的用户
type Mention struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Post 观测到的外部帖子及其文章/发布状态
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"post_id"`
	AccountID uint      `gorm:"index:idx_post_account_time;not null" json:"account_id"`
	Author    string    `gorm:"type:varchar(255);not null" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	PostedAt  time.Time `gorm:"index:idx_post_account_time" json:"posted_at"`

	ReplyCount   int64 `gorm:"not null;default:0" json:"reply_count"`
	RetweetCount int64 `gorm:"not null;default:0" json:"retweet_count"`
	LikeCount    int64 `gorm:"not null;default:0" json:"like_count"`
	QuoteCount   int64 `gorm:"not null;default:0" json:"quote_count"`
	ViewCount    int64 `gorm:"not null;default:0" json:"view_count"`
	IsRetweet    bool  `gorm:"not null;default:false" json:"is_retweet"`
	IsReply      bool  `gorm:"not null;default:false" json:"is_reply"`

	Media    JSONList[string]  `gorm:"type:text" json:"media"`
	Links    JSONList[Link]    `gorm:"type:text" json:"links"`
	Hashtags JSONList[string]  `gorm:"type:text" json:"hashtags"`
	Mentions JSONList[Mention] `gorm:"type:text" json:"mentions"`

	Ignored             bool       `gorm:"not null;default:false" json:"ignored"`
	ArticleGenerated    bool       `gorm:"not null;default:false;index" json:"article_generated"`
	GenerationClaimedAt *time.Time `json:"-"`
	ArticleEN           *Article   `gorm:"column:article_en;type:text" json:"article_en"`
	ArticleFR           *Article   `gorm:"column:article_fr;type:text" json:"article_fr"`

	PublishedEN     bool       `gorm:"column:published_en;not null;default:false" json:"published_en"`
	PublishedAtEN   *time.Time `gorm:"column:published_at_en" json:"published_at_en"`
	PublishedLinkEN *string    `gorm:"column:published_link_en;type:varchar(1024)" json:"published_link_en"`
	PublishedFR     bool       `gorm:"column:published_fr;not null;default:false" json:"published_fr"`
	PublishedAtFR   *time.Time `gorm:"column:published_at_fr" json:"published_at_fr"`
	PublishedLinkFR *string    `gorm:"column:published_link_fr;type:varchar(1024)" json:"published_link_fr"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// ArticleFor 返回 lang 的文章，未生成时为 nil
func (p *Post) ArticleFor(lang Language) *Article {
	if lang == LanguageFR {
		return p.ArticleFR
	}
	return p.ArticleEN
}

// PublishedFor lang 是否已成功发布
func (p *Post) PublishedFor(lang Language) bool {
	if lang == LanguageFR {
		return p.PublishedFR
	}
	return p.PublishedEN
}

// FirstMedia 第一个已解析的媒体 URL，没有则为 ""
func (p *Post) FirstMedia() string {
	if p.Media.State == ListParsed && len(p.Media.Items) > 0 {
		return p.Media.Items[0]
	}
	return ""
}
