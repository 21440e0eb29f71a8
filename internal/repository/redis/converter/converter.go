package converter

import (
	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/usecase"
)

// ItemInfoConverter преобразует сведения о предмете между usecase и моделью кэша.
type ItemInfoConverter struct{}

func (ItemInfoConverter) ToRedisModel(entity *usecase.ItemInfo) *ItemInfoRedisModel {
	model := &ItemInfoRedisModel{
		ID:           entity.ID.String(),
		Name:         entity.Name,
		Description:  entity.Description,
		Category:     entity.Category,
		ImageURL:     entity.ImageURL,
		LocationName: entity.LocationName,
		Tags:         entity.Tags,
	}
	if entity.LocationID != nil {
		model.LocationID = entity.LocationID.String()
	}
	return model
}

func (ItemInfoConverter) ToUseCase(model *ItemInfoRedisModel) (*usecase.ItemInfo, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, err
	}

	info := &usecase.ItemInfo{
		ID:           id,
		Name:         model.Name,
		Description:  model.Description,
		Category:     model.Category,
		ImageURL:     model.ImageURL,
		LocationName: model.LocationName,
		Tags:         model.Tags,
	}
	if info.Tags == nil {
		info.Tags = []string{}
	}

	if model.LocationID != "" {
		locationID, err := uuid.Parse(model.LocationID)
		if err != nil {
			return nil, err
		}
		info.LocationID = &locationID
	}

	return info, nil
}

func (c ItemInfoConverter) ToArrRedisModel(entities []usecase.ItemInfo) []ItemInfoRedisModel {
	out := make([]ItemInfoRedisModel, 0, len(entities))
	for i := range entities {
		out = append(out, *c.ToRedisModel(&entities[i]))
	}
	return out
}
