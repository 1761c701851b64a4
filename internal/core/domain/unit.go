package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitGrams       Unit = "Grams"
	UnitKilograms   Unit = "Kilograms"
	UnitMilliliters Unit = "Milliliters"
	UnitLiters      Unit = "Liters"
	UnitPieces      Unit = "Pieces"
)

type Dimension string

const (
	DimensionWeight  Dimension = "weight"
	DimensionVolume  Dimension = "volume"
	DimensionCount   Dimension = "count"
	DimensionUnknown Dimension = "unknown"
)

// displayThreshold is the base quantity at which Grams and Milliliters
// switch to Kilograms and Liters for display.
const displayThreshold = 1000

// UnitSpec describes how a unit relates to the base unit of its dimension:
// quantity * Factor = quantity in Base.
type UnitSpec struct {
	Base      Unit
	Factor    float64
	Dimension Dimension
}

var unitTable = map[string]UnitSpec{
	"grams":       {Base: UnitGrams, Factor: 1, Dimension: DimensionWeight},
	"kilograms":   {Base: UnitGrams, Factor: 1000, Dimension: DimensionWeight},
	"milliliters": {Base: UnitMilliliters, Factor: 1, Dimension: DimensionVolume},
	"liters":      {Base: UnitMilliliters, Factor: 1000, Dimension: DimensionVolume},
	"pieces":      {Base: UnitPieces, Factor: 1, Dimension: DimensionCount},
}

// UnitGroups lists the selectable units of every known dimension.
var UnitGroups = map[Dimension][]Unit{
	DimensionWeight: {UnitGrams, UnitKilograms},
	DimensionVolume: {UnitMilliliters, UnitLiters},
	DimensionCount:  {UnitPieces},
}

func normalizeUnit(u Unit) string {
	return strings.ToLower(strings.TrimSpace(string(u)))
}

// ParseUnit returns the canonical spelling of a known unit. Unknown units are
// returned trimmed but otherwise untouched.
func ParseUnit(s string) Unit {
	u := Unit(strings.TrimSpace(s))
	if _, ok := unitTable[normalizeUnit(u)]; !ok {
		return u
	}
	for _, units := range UnitGroups {
		for _, known := range units {
			if normalizeUnit(known) == normalizeUnit(u) {
				return known
			}
		}
	}
	return u
}

// Describe never fails: an unrecognized unit is its own base with factor 1.
func (u Unit) Describe() UnitSpec {
	if spec, ok := unitTable[normalizeUnit(u)]; ok {
		return spec
	}
	return UnitSpec{Base: Unit(strings.TrimSpace(string(u))), Factor: 1, Dimension: DimensionUnknown}
}

func (u Unit) Known() bool {
	_, ok := unitTable[normalizeUnit(u)]
	return ok
}

// GroupKey identifies the set of units u can be summed with. Unrecognized
// units only group with the same literal unit, compared case-insensitively.
func (u Unit) GroupKey() string {
	spec := u.Describe()
	if spec.Dimension == DimensionUnknown {
		return string(DimensionUnknown) + ":" + normalizeUnit(u)
	}
	return string(spec.Dimension)
}

// Siblings returns the units u may be converted to, or u alone when unknown.
func (u Unit) Siblings() []Unit {
	if units, ok := UnitGroups[u.Describe().Dimension]; ok {
		return units
	}
	return []Unit{u}
}

type Quantity struct {
	Amount float64 `json:"quantity"`
	Unit   Unit    `json:"unit"`
}

func ToBase(quantity float64, unit Unit) float64 {
	return quantity * unit.Describe().Factor
}

// FromBase picks the most readable unit for a base quantity. The result is
// rounded for display and must not be fed back into a running sum.
func FromBase(baseQuantity float64, baseUnit Unit) Quantity {
	switch normalizeUnit(baseUnit) {
	case "grams":
		if baseQuantity >= displayThreshold {
			return Quantity{Amount: round(baseQuantity/displayThreshold, 2), Unit: UnitKilograms}
		}
		return Quantity{Amount: round(baseQuantity, 1), Unit: UnitGrams}
	case "milliliters":
		if baseQuantity >= displayThreshold {
			return Quantity{Amount: round(baseQuantity/displayThreshold, 2), Unit: UnitLiters}
		}
		return Quantity{Amount: round(baseQuantity, 1), Unit: UnitMilliliters}
	}
	return Quantity{Amount: round(baseQuantity, 2), Unit: titleCase(baseUnit)}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func titleCase(u Unit) Unit {
	r := []rune(string(u))
	if len(r) == 0 {
		return u
	}
	return Unit(strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:])))
}
