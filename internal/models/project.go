package models

import (
	"encoding/json"
	"time"
)

// Project is a registered tenant application. The api_key is an opaque
// bearer token identifying exactly one project until rotated.
type Project struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	APIKey      string    `json:"api_key" db:"api_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectCreate is the POST /api/projects payload.
type ProjectCreate struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// ProjectPatch is a partial update that distinguishes "field absent" from
// "field set to null": only fields present in the JSON body are applied.
type ProjectPatch struct {
	Name        *string
	Description *string

	NameSet        bool
	DescriptionSet bool
}

func (p *ProjectPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["name"]; ok {
		p.NameSet = true
		if err := json.Unmarshal(v, &p.Name); err != nil {
			return err
		}
	}
	if v, ok := raw["description"]; ok {
		p.DescriptionSet = true
		if err := json.Unmarshal(v, &p.Description); err != nil {
			return err
		}
	}
	return nil
}
