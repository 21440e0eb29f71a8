package http

import (
	"github.com/google/uuid"
	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/internal/usecase"
)

type StatusResponse struct {
	ModelReady           bool   `json:"model_ready"`
	ActiveModel          string `json:"active_model"`
	Backend              string `json:"backend"`
	EnrolledItems        int64  `json:"enrolled_items"`
	TotalReferenceImages int64  `json:"total_reference_images"`
	StaleEmbeddings      int64  `json:"stale_embeddings"`
}

type IdentifyTextRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type ItemResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Category     string     `json:"category,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	LocationID   *uuid.UUID `json:"location_id,omitempty"`
	LocationName string     `json:"location_name,omitempty"`
	Tags         []string   `json:"tags"`
}

type MatchResponse struct {
	Confidence     float64      `json:"confidence"`
	Similarity     float64      `json:"similarity"`
	ReferenceImage string       `json:"reference_image"`
	Item           ItemResponse `json:"item"`
}

type IdentifyResponse struct {
	Matches []MatchResponse `json:"matches"`
	Message string          `json:"message,omitempty"`
}

type EnrollResponse struct {
	Message      string            `json:"message"`
	EnrollmentID uuid.UUID         `json:"enrollment_id"`
	ImageURL     string            `json:"image_url"`
	Backend      string            `json:"backend"`
	Tags         []string          `json:"tags,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

type UnenrollResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

type ReindexResponse struct {
	Reindexed int `json:"reindexed"`
	Failed    int `json:"failed"`
}

type ModelResponse struct {
	Filename string  `json:"filename"`
	SizeMB   float64 `json:"size_mb"`
	Active   bool    `json:"active"`
}

type CatalogEntryResponse struct {
	Name        string  `json:"name"`
	Filename    string  `json:"filename"`
	URL         string  `json:"url"`
	SizeMB      float64 `json:"size_mb"`
	Description string  `json:"description"`
	Opset       int     `json:"opset"`
	Installed   bool    `json:"installed"`
	Active      bool    `json:"active"`
}

type DownloadModelRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toStatusResponse(res *usecase.StatusRes) StatusResponse {
	return StatusResponse{
		ModelReady:           res.ModelReady,
		ActiveModel:          res.ActiveModel,
		Backend:              res.Backend,
		EnrolledItems:        res.EnrolledItems,
		TotalReferenceImages: res.TotalReferenceImages,
		StaleEmbeddings:      res.StaleEmbeddings,
	}
}

func toItemResponse(item usecase.ItemInfo) ItemResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemResponse{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Category:     item.Category,
		ImageURL:     item.ImageURL,
		LocationID:   item.LocationID,
		LocationName: item.LocationName,
		Tags:         tags,
	}
}

func toIdentifyResponse(res *usecase.IdentifyRes) IdentifyResponse {
	matches := make([]MatchResponse, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, MatchResponse{
			Confidence:     m.Confidence,
			Similarity:     m.Similarity,
			ReferenceImage: m.ReferenceImage,
			Item:           toItemResponse(m.Item),
		})
	}
	return IdentifyResponse{Matches: matches, Message: res.Message}
}

func toModelResponses(models []domain.ModelArtifact) []ModelResponse {
	out := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		out = append(out, toModelResponse(m))
	}
	return out
}

func toModelResponse(m domain.ModelArtifact) ModelResponse {
	return ModelResponse{Filename: m.Filename, SizeMB: m.SizeMB, Active: m.Active}
}

func toCatalogResponses(entries []domain.CatalogEntry) []CatalogEntryResponse {
	out := make([]CatalogEntryResponse, 0, len(entries))
	for _, c := range entries {
		out = append(out, CatalogEntryResponse{
			Name:        c.Name,
			Filename:    c.Filename,
			URL:         c.URL,
			SizeMB:      c.SizeMB,
			Description: c.Description,
			Opset:       c.Opset,
			Installed:   c.Installed,
			Active:      c.Active,
		})
	}
	return out
}
