package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Recipe is the persisted generation artifact. OwnerID is fixed at creation
// and never changes; ImageURL stays empty until enrichment succeeds.
type Recipe struct {
	ID                  uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           gorm.DeletedAt   `gorm:"index" json:"-"`
	OwnerID             uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	Title               string           `gorm:"size:255;not null" json:"title"`
	Description         string           `gorm:"type:text" json:"description"`
	Style               string           `gorm:"size:50" json:"style"`
	Ingredients         JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	Steps               JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"steps"`
	Restrictions        JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"restrictions"`
	ExcludedIngredients JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"excluded_ingredients"`
	PrepTime            string           `gorm:"size:50" json:"prep_time"`
	CookTime            string           `gorm:"size:50" json:"cook_time"`
	Servings            int              `json:"servings"`
	Difficulty          string           `gorm:"size:20" json:"difficulty"`
	Calories            float64          `gorm:"type:float" json:"calories"`
	Protein             float64          `gorm:"type:float" json:"protein"`
	Carbs               float64          `gorm:"type:float" json:"carbs"`
	Fat                 float64          `gorm:"type:float" json:"fat"`
	ImageURL            string           `gorm:"size:512" json:"image_url"`
	Embedding           pgvector.Vector  `gorm:"type:vector(3)" json:"-"`
}

// BeforeCreate assigns an id when the caller did not.
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
