package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/postmux/postmux/model"
)

// SubscriberDirectory resolves the subscriber sets fan-out targets. Callers
// union the author and project sets when a post carries both associations.
type SubscriberDirectory struct {
	db *gorm.DB
}

func NewSubscriberDirectory(db *gorm.DB) *SubscriberDirectory {
	return &SubscriberDirectory{db: db}
}

func (d *SubscriberDirectory) AuthorSubscriberIDs(ctx context.Context, authorId string) ([]string, error) {
	var ids []string
	res := d.db.WithContext(ctx).Model(&model.UserAuthorSubscription{}).
		Where("author_id = ?", authorId).
		Pluck("user_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to resolve subscribers of author %s", authorId)
	}
	return ids, nil
}

func (d *SubscriberDirectory) ProjectSubscriberIDs(ctx context.Context, projectId string) ([]string, error) {
	var ids []string
	res := d.db.WithContext(ctx).Model(&model.UserProjectSubscription{}).
		Where("project_id = ?", projectId).
		Pluck("user_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to resolve subscribers of project %s", projectId)
	}
	return ids, nil
}
