package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"subsync/internal/domain/client"
	"subsync/internal/infrastructure/persistence/mappers"
	"subsync/internal/infrastructure/persistence/models"
	"subsync/internal/shared/logger"
)

type ClientRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.ClientMapper
	logger logger.Interface
}

func NewClientRepository(db *gorm.DB, logger logger.Interface) client.Repository {
	return &ClientRepositoryImpl{
		db:     db,
		mapper: mappers.NewClientMapper(),
		logger: logger,
	}
}

func (r *ClientRepositoryImpl) Create(ctx context.Context, clientEntity *client.Client) error {
	model, err := r.mapper.ToModel(clientEntity)
	if err != nil {
		r.logger.Errorw("failed to map client entity to model", "error", err)
		return fmt.Errorf("failed to map client entity: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create client in database", "error", err)
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := clientEntity.SetID(model.ID); err != nil {
		r.logger.Errorw("failed to set client ID", "error", err)
		return fmt.Errorf("failed to set client ID: %w", err)
	}

	r.logger.Infow("client created", "id", model.ID, "email", model.Email)
	return nil
}

func (r *ClientRepositoryImpl) GetByID(ctx context.Context, id uint) (*client.Client, error) {
	var model models.ClientModel

	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get client by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *ClientRepositoryImpl) GetBySID(ctx context.Context, sid string) (*client.Client, error) {
	var model models.ClientModel

	if err := r.db.WithContext(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get client by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *ClientRepositoryImpl) GetByEmail(ctx context.Context, email string) (*client.Client, error) {
	var model models.ClientModel

	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get client by email", "error", err)
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return r.mapper.ToEntity(&model)
}

func (r *ClientRepositoryImpl) Update(ctx context.Context, clientEntity *client.Client) error {
	model, err := r.mapper.ToModel(clientEntity)
	if err != nil {
		r.logger.Errorw("failed to map client entity to model", "error", err)
		return fmt.Errorf("failed to map client entity: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":         model.Name,
			"external_ids": model.ExternalIDs,
			"updated_at":   model.UpdatedAt,
		}).Error; err != nil {
		r.logger.Errorw("failed to update client", "id", model.ID, "error", err)
		return fmt.Errorf("failed to update client: %w", err)
	}

	return nil
}
