package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/infrastructure/persistence/models"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
	ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error)
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	status := vo.SubscriptionStatus(model.Status)
	if !vo.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", model.Status)
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	entity, err := subscription.Reconstruct(subscription.ReconstructParams{
		ID:                model.ID,
		SID:               model.SID,
		ExternalReference: model.ExternalReference,
		ClientID:          model.ClientID,
		PlanID:            model.PlanID,
		Status:            status,
		StartsAt:          model.StartsAt,
		EndsAt:            model.EndsAt,
		CancelledAt:       model.CancelledAt,
		LastSyncedAt:      model.LastSyncedAt,
		LastRenewalAt:     model.LastRenewalAt,
		BillingCycleCount: model.BillingCycleCount,
		RenewalToken:      model.RenewalToken,
		Metadata:          metadata,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}

	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	var metadataJSON datatypes.JSON
	if metadata := entity.Metadata(); len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = data
	}

	return &models.SubscriptionModel{
		ID:                entity.ID(),
		SID:               entity.SID(),
		ExternalReference: entity.ExternalReference(),
		ClientID:          entity.ClientID(),
		PlanID:            entity.PlanID(),
		Status:            entity.Status().String(),
		StartsAt:          entity.StartsAt(),
		EndsAt:            entity.EndsAt(),
		CancelledAt:       entity.CancelledAt(),
		LastSyncedAt:      entity.LastSyncedAt(),
		LastRenewalAt:     entity.LastRenewalAt(),
		BillingCycleCount: entity.BillingCycleCount(),
		RenewalToken:      entity.RenewalToken(),
		Metadata:          metadataJSON,
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}, nil
}

func (m *SubscriptionMapperImpl) ToEntities(subscriptionModels []*models.SubscriptionModel) ([]*subscription.Subscription, error) {
	entities := make([]*subscription.Subscription, 0, len(subscriptionModels))
	for _, model := range subscriptionModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
