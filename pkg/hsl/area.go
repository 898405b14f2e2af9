package hsl

import "github.com/gregLibert/travel-card/pkg/card"

// Area type codes as stored on the card.
const (
	areaTypeZone      = 0
	areaTypeVehicle   = 1
	areaTypeMultiZone = 2
)

var zoneNames = map[int]string{
	1:  "Helsinki",
	2:  "Espoo",
	4:  "Vantaa",
	5:  "Seutu",
	6:  "Kirkkonummi-Siuntio",
	7:  "Vihti",
	8:  "Nurmijärvi",
	9:  "Kerava-Sipoo-Tuusula",
	10: "Sipoo",
	14: "Lähiseutu 2",
	15: "Lähiseutu 3",
}

var multiZoneNames = map[int]string{
	0:  "AB",
	1:  "AB",
	2:  "BC",
	4:  "BC",
	5:  "ABC",
	6:  "D",
	9:  "D",
	14: "BCD",
	15: "ABCD",
}

// NewArea interprets a raw area type and code. Vehicle areas and unknown
// codes have no name.
func NewArea(typeCode, code int) card.Area {
	a := card.Area{Code: code}
	switch typeCode {
	case areaTypeZone:
		a.Type = card.AreaZone
		a.Name = zoneNames[code]
	case areaTypeVehicle:
		a.Type = card.AreaVehicle
	case areaTypeMultiZone:
		a.Type = card.AreaMultiZone
		a.Name = multiZoneNames[code]
	default:
		a.Type = card.AreaUnknown
	}
	return a
}

func areaTypeCode(t card.AreaType) int {
	switch t {
	case card.AreaZone:
		return areaTypeZone
	case card.AreaVehicle:
		return areaTypeVehicle
	case card.AreaMultiZone:
		return areaTypeMultiZone
	default:
		return 3
	}
}
