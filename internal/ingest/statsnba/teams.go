package statsnba

import "github.com/fortuna/courtside/internal/store"

type teamRecord struct {
	id           int
	fullName     string
	abbreviation string
	nickname     string
	city         string
}

// staticTeams mirrors the league's static team table. Team IDs never change,
// so the list ships with the binary instead of being fetched.
var staticTeams = []teamRecord{
	{1610612737, "Atlanta Hawks", "ATL", "Hawks", "Atlanta"},
	{1610612738, "Boston Celtics", "BOS", "Celtics", "Boston"},
	{1610612739, "Cleveland Cavaliers", "CLE", "Cavaliers", "Cleveland"},
	{1610612740, "New Orleans Pelicans", "NOP", "Pelicans", "New Orleans"},
	{1610612741, "Chicago Bulls", "CHI", "Bulls", "Chicago"},
	{1610612742, "Dallas Mavericks", "DAL", "Mavericks", "Dallas"},
	{1610612743, "Denver Nuggets", "DEN", "Nuggets", "Denver"},
	{1610612744, "Golden State Warriors", "GSW", "Warriors", "Golden State"},
	{1610612745, "Houston Rockets", "HOU", "Rockets", "Houston"},
	{1610612746, "Los Angeles Clippers", "LAC", "Clippers", "Los Angeles"},
	{1610612747, "Los Angeles Lakers", "LAL", "Lakers", "Los Angeles"},
	{1610612748, "Miami Heat", "MIA", "Heat", "Miami"},
	{1610612749, "Milwaukee Bucks", "MIL", "Bucks", "Milwaukee"},
	{1610612750, "Minnesota Timberwolves", "MIN", "Timberwolves", "Minnesota"},
	{1610612751, "Brooklyn Nets", "BKN", "Nets", "Brooklyn"},
	{1610612752, "New York Knicks", "NYK", "Knicks", "New York"},
	{1610612753, "Orlando Magic", "ORL", "Magic", "Orlando"},
	{1610612754, "Indiana Pacers", "IND", "Pacers", "Indiana"},
	{1610612755, "Philadelphia 76ers", "PHI", "76ers", "Philadelphia"},
	{1610612756, "Phoenix Suns", "PHX", "Suns", "Phoenix"},
	{1610612757, "Portland Trail Blazers", "POR", "Trail Blazers", "Portland"},
	{1610612758, "Sacramento Kings", "SAC", "Kings", "Sacramento"},
	{1610612759, "San Antonio Spurs", "SAS", "Spurs", "San Antonio"},
	{1610612760, "Oklahoma City Thunder", "OKC", "Thunder", "Oklahoma City"},
	{1610612761, "Toronto Raptors", "TOR", "Raptors", "Toronto"},
	{1610612762, "Utah Jazz", "UTA", "Jazz", "Utah"},
	{1610612763, "Memphis Grizzlies", "MEM", "Grizzlies", "Memphis"},
	{1610612764, "Washington Wizards", "WAS", "Wizards", "Washington"},
	{1610612765, "Detroit Pistons", "DET", "Pistons", "Detroit"},
	{1610612766, "Charlotte Hornets", "CHA", "Hornets", "Charlotte"},
}

// Teams returns the static team table as entity references.
func Teams() []store.EntityRef {
	out := make([]store.EntityRef, 0, len(staticTeams))
	for _, t := range staticTeams {
		out = append(out, store.EntityRef{
			ID:           t.id,
			Kind:         store.EntityTeam,
			FullName:     t.fullName,
			Abbreviation: t.abbreviation,
			Nickname:     t.nickname,
			City:         t.city,
		})
	}
	return out
}
