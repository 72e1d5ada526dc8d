package dbschema

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// BaseModel carries the common persistence columns.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func fromJSONMap(m datatypes.JSONMap) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}
