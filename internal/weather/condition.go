package weather

// Condition is the platform condition derived from a MeteoSwiss icon code.
type Condition string

const (
	ConditionClearNight     Condition = "clear-night"
	ConditionCloudy         Condition = "cloudy"
	ConditionFog            Condition = "fog"
	ConditionHail           Condition = "hail"
	ConditionLightning      Condition = "lightning"
	ConditionLightningRainy Condition = "lightning-rainy"
	ConditionPartlyCloudy   Condition = "partlycloudy"
	ConditionPouring        Condition = "pouring"
	ConditionRainy          Condition = "rainy"
	ConditionSnowy          Condition = "snowy"
	ConditionSnowyRainy     Condition = "snowy-rainy"
	ConditionSunny          Condition = "sunny"
	ConditionWindy          Condition = "windy"
	ConditionWindyVariant   Condition = "windy-variant"
	ConditionExceptional    Condition = "exceptional"

	// ConditionUnknown is returned for icons outside the table.
	ConditionUnknown Condition = ""
)

// Icons 1-99 are day symbols, 101-199 the matching night symbols.
var conditionIcons = map[Condition][]int{
	ConditionClearNight:     {101},
	ConditionCloudy:         {5, 35, 105, 135},
	ConditionFog:            {27, 28, 127, 128},
	ConditionLightning:      {12, 112},
	ConditionLightningRainy: {13, 23, 24, 25, 32, 113, 123, 124, 125, 132},
	ConditionPartlyCloudy:   {2, 3, 4, 102, 103, 104},
	ConditionPouring:        {20, 120},
	ConditionRainy:          {6, 9, 14, 17, 29, 33, 106, 109, 114, 117, 129, 133},
	ConditionSnowy:          {8, 11, 16, 19, 22, 30, 34, 108, 111, 116, 119, 122, 130, 134},
	ConditionSnowyRainy:     {7, 10, 15, 18, 21, 31, 107, 110, 115, 118, 121, 131},
	ConditionSunny:          {1, 26, 126},
}

var iconConditions = func() map[int]Condition {
	m := make(map[int]Condition)
	for condition, icons := range conditionIcons {
		for _, icon := range icons {
			m[icon] = condition
		}
	}
	return m
}()

// ConditionForIcon maps an icon code to its condition.
func ConditionForIcon(icon int) Condition {
	return iconConditions[icon]
}
