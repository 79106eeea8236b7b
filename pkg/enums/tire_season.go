package enums

import "fmt"

// TireSeason classifies a tire for catalog filtering.
type TireSeason string

const (
	TireSeasonSummer     TireSeason = "summer"
	TireSeasonWinter     TireSeason = "winter"
	TireSeasonAllSeason  TireSeason = "all_season"
	TireSeasonAllTerrain TireSeason = "all_terrain"
)

var validTireSeasons = []TireSeason{
	TireSeasonSummer,
	TireSeasonWinter,
	TireSeasonAllSeason,
	TireSeasonAllTerrain,
}

func (s TireSeason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TireSeason.
func (s TireSeason) IsValid() bool {
	for _, candidate := range validTireSeasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTireSeason converts raw input into a TireSeason.
func ParseTireSeason(value string) (TireSeason, error) {
	for _, candidate := range validTireSeasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tire season %q", value)
}
