package domain

import (
	"time"

	"github.com/google/uuid"
)

// Item: предмет каталога. Подсистема распознавания только читает его
// и меняет основное изображение, теги и атрибуты.
type Item struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Category     string
	ImageURL     string
	LocationID   *uuid.UUID
	LocationName string
	Tags         []string
	Attributes   map[string]string
	UpdatedAt    time.Time
}

// HasImage сообщает, задано ли у предмета основное изображение.
func (i *Item) HasImage() bool {
	return i.ImageURL != ""
}

// MergeTags добавляет теги без дубликатов с учётом регистра исходного списка.
func (i *Item) MergeTags(tags []string) bool {
	seen := make(map[string]struct{}, len(i.Tags))
	for _, t := range i.Tags {
		seen[t] = struct{}{}
	}

	changed := false
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		i.Tags = append(i.Tags, t)
		changed = true
	}
	return changed
}

// MergeAttributes добавляет атрибуты, не перезаписывая уже заданные значения.
func (i *Item) MergeAttributes(attrs map[string]string) bool {
	if len(attrs) == 0 {
		return false
	}
	if i.Attributes == nil {
		i.Attributes = make(map[string]string, len(attrs))
	}

	changed := false
	for k, v := range attrs {
		if k == "" || v == "" {
			continue
		}
		if _, ok := i.Attributes[k]; ok {
			continue
		}
		i.Attributes[k] = v
		changed = true
	}
	return changed
}
