package converter

type ItemInfoRedisModel struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	LocationID   string   `json:"location_id,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}
