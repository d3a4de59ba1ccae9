package enums

import (
	"fmt"
	"strings"
)

// PropertyType classifies the kind of dwelling.
type PropertyType string

const (
	PropertyTypeApartment PropertyType = "apartment"
	PropertyTypeHouse     PropertyType = "house"
	PropertyTypeStudio    PropertyType = "studio"
	PropertyTypeVilla     PropertyType = "villa"
	PropertyTypeRoom      PropertyType = "room"
)

var validPropertyTypes = []PropertyType{
	PropertyTypeApartment,
	PropertyTypeHouse,
	PropertyTypeStudio,
	PropertyTypeVilla,
	PropertyTypeRoom,
}

func (p PropertyType) String() string {
	return string(p)
}

func (p PropertyType) IsValid() bool {
	for _, candidate := range validPropertyTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePropertyType(value string) (PropertyType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPropertyTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid property type %q", value)
}
