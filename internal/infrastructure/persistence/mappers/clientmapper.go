package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"subsync/internal/domain/client"
	"subsync/internal/infrastructure/persistence/models"
)

type ClientMapper interface {
	ToEntity(model *models.ClientModel) (*client.Client, error)
	ToModel(entity *client.Client) (*models.ClientModel, error)
}

type ClientMapperImpl struct{}

func NewClientMapper() ClientMapper {
	return &ClientMapperImpl{}
}

func (m *ClientMapperImpl) ToEntity(model *models.ClientModel) (*client.Client, error) {
	if model == nil {
		return nil, nil
	}

	var externalIDs map[string]string
	if model.ExternalIDs != nil {
		if err := json.Unmarshal(model.ExternalIDs, &externalIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal external ids: %w", err)
		}
	}

	entity, err := client.Reconstruct(client.ReconstructParams{
		ID:          model.ID,
		SID:         model.SID,
		Name:        model.Name,
		Email:       model.Email,
		ExternalIDs: externalIDs,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct client entity: %w", err)
	}

	return entity, nil
}

func (m *ClientMapperImpl) ToModel(entity *client.Client) (*models.ClientModel, error) {
	if entity == nil {
		return nil, nil
	}

	var externalIDsJSON datatypes.JSON
	if ids := entity.ExternalIDs(); len(ids) > 0 {
		data, err := json.Marshal(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal external ids: %w", err)
		}
		externalIDsJSON = data
	}

	return &models.ClientModel{
		ID:          entity.ID(),
		SID:         entity.SID(),
		Name:        entity.Name(),
		Email:       entity.Email(),
		ExternalIDs: externalIDsJSON,
		CreatedAt:   entity.CreatedAt(),
		UpdatedAt:   entity.UpdatedAt(),
	}, nil
}
