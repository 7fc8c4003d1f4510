package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"subsync/internal/domain/subscription"
	"subsync/internal/infrastructure/persistence/models"
)

type PlanMapper interface {
	ToEntity(model *models.PlanModel) (*subscription.Plan, error)
	ToModel(entity *subscription.Plan) (*models.PlanModel, error)
	ToEntities(models []*models.PlanModel) ([]*subscription.Plan, error)
}

type PlanMapperImpl struct{}

func NewPlanMapper() PlanMapper {
	return &PlanMapperImpl{}
}

func (m *PlanMapperImpl) ToEntity(model *models.PlanModel) (*subscription.Plan, error) {
	if model == nil {
		return nil, nil
	}

	var features []string
	if model.Features != nil {
		if err := json.Unmarshal(model.Features, &features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan features: %w", err)
		}
	}

	entity, err := subscription.ReconstructPlan(subscription.PlanReconstructParams{
		ID:                model.ID,
		SID:               model.SID,
		Name:              model.Name,
		Slug:              model.Slug,
		ExternalProductID: model.ExternalProductID,
		PriceCents:        model.PriceCents,
		Currency:          model.Currency,
		Interval:          model.Interval,
		DurationDays:      model.DurationDays,
		Features:          features,
		Active:            model.Active,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct plan entity: %w", err)
	}

	return entity, nil
}

func (m *PlanMapperImpl) ToModel(entity *subscription.Plan) (*models.PlanModel, error) {
	if entity == nil {
		return nil, nil
	}

	var featuresJSON datatypes.JSON
	if features := entity.Features(); len(features) > 0 {
		data, err := json.Marshal(features)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal plan features: %w", err)
		}
		featuresJSON = data
	}

	return &models.PlanModel{
		ID:                entity.ID(),
		SID:               entity.SID(),
		Name:              entity.Name(),
		Slug:              entity.Slug(),
		ExternalProductID: entity.ExternalProductID(),
		PriceCents:        entity.PriceCents(),
		Currency:          entity.Currency(),
		Interval:          entity.Interval(),
		DurationDays:      entity.DurationDays(),
		Features:          featuresJSON,
		Active:            entity.IsActive(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}, nil
}

func (m *PlanMapperImpl) ToEntities(planModels []*models.PlanModel) ([]*subscription.Plan, error) {
	entities := make([]*subscription.Plan, 0, len(planModels))
	for _, model := range planModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
