package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/autopress/internal/model"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrAlreadyGenerated    = errors.New("article already generated")
	ErrArticleMissing      = errors.New("article not generated for language")
	ErrNoArticle           = errors.New("no article to store")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// PostRepository 帖子仓储。所有状态变更都是单条 UPDATE。
type PostRepository interface {
	// InsertIfAbsent 插入新帖子；post_id 已存在时返回 (nil, nil)
	InsertIfAbsent(ctx context.Context, post *model.Post) (*model.Post, error)
	// GetNewest 返回账号下最新的帖子，没有时返回 (nil, nil)
	GetNewest(ctx context.Context, accountID uint) (*model.Post, error)
	Get(ctx context.Context, id uint) (*model.Post, error)
	// ClaimGeneration 原子地占用生成权，返回是否占用成功
	ClaimGeneration(ctx context.Context, id uint, force bool, lease time.Duration) (bool, error)
	ReleaseGeneration(ctx context.Context, id uint) error
	// SetArticle 写入文章并置 article_generated，同时释放占用
	SetArticle(ctx context.Context, id uint, en, fr *model.Article, force bool) error
	SetPublished(ctx context.Context, id uint, lang model.Language, success bool, link string) error
}

type postRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *postRepository) InsertIfAbsent(ctx context.Context, post *model.Post) (*model.Post, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "post_id"}}, DoNothing: true}).
		Create(post)
	if res.Error != nil {
		return nil, fmt.Errorf("insert post %s: %w", post.PostID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return post, nil
}

func (r *postRepository) GetNewest(ctx context.Context, accountID uint) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("posted_at DESC").Order("id DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) Get(ctx context.Context, id uint) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) ClaimGeneration(ctx context.Context, id uint, force bool, lease time.Duration) (bool, error) {
	now := r.now()
	q := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Where("(generation_claimed_at IS NULL OR generation_claimed_at < ?)", now.Add(-lease))
	if !force {
		q = q.Where("article_generated = ?", false)
	}
	res := q.Update("generation_claimed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) ReleaseGeneration(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Update("generation_claimed_at", nil).Error
}

func (r *postRepository) SetArticle(ctx context.Context, id uint, en, fr *model.Article, force bool) error {
	if en == nil && fr == nil {
		return ErrNoArticle
	}
	updates := map[string]interface{}{
		"article_generated":     true,
		"generation_claimed_at": nil,
	}
	if en != nil {
		updates["article_en"] = en
	}
	if fr != nil {
		updates["article_fr"] = fr
	}

	q := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id)
	if !force {
		q = q.Where("article_generated = ?", false)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyGenerated
	}
	return nil
}

func (r *postRepository) SetPublished(ctx context.Context, id uint, lang model.Language, success bool, link string) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	suffix := string(lang)
	// 失败不覆盖已有的发布记录
	if !success {
		post, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if post.ArticleFor(lang) == nil {
			return fmt.Errorf("%w: %s", ErrArticleMissing, lang)
		}
		return nil
	}
	updates := map[string]interface{}{
		"published_" + suffix:    true,
		"published_at_" + suffix: r.now(),
	}
	if link != "" {
		updates["published_link_"+suffix] = link
	}

	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Where("article_" + suffix + " IS NOT NULL").
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrArticleMissing, lang)
	}
	return nil
}
