package model

import "strings"

// Side represents which half of a map a player is on.
type Side int

const (
	SideUnknown Side = 0
	SideT       Side = 2
	SideCT      Side = 3
)

func (s Side) String() string {
	switch s {
	case SideT:
		return "T"
	case SideCT:
		return "CT"
	default:
		return "?"
	}
}

// ParseSide maps "T"/"CT" (any case) to a Side.
func ParseSide(s string) Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T":
		return SideT
	case "CT":
		return SideCT
	default:
		return SideUnknown
	}
}

// Role is one of the seven tactical roles. The numeric values match the
// role ids used by the serving layer.
type Role int

const (
	RoleUnknown    Role = 0
	RoleAWP        Role = 1
	RoleLurker     Role = 2
	RoleSupport    Role = 3
	RoleSpacetaker Role = 4
	RoleAnchor     Role = 5
	RoleRotator    Role = 6
	RoleIGL        Role = 7
)

// Roles lists every valid role in id order.
func Roles() []Role {
	return []Role{RoleAWP, RoleLurker, RoleSupport, RoleSpacetaker, RoleAnchor, RoleRotator, RoleIGL}
}

func (r Role) String() string {
	switch r {
	case RoleAWP:
		return "AWP"
	case RoleLurker:
		return "Lurker"
	case RoleSupport:
		return "Support"
	case RoleSpacetaker:
		return "Spacetaker"
	case RoleAnchor:
		return "Anchor"
	case RoleRotator:
		return "Rotator"
	case RoleIGL:
		return "IGL"
	default:
		return "?"
	}
}

// Valid reports whether r is one of the seven enumerated roles.
func (r Role) Valid() bool {
	return r >= RoleAWP && r <= RoleIGL
}

// ParseRole maps a role name to a Role. Matching ignores case and
// surrounding whitespace; "entry" and "awper" are accepted as aliases.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "awp", "awper":
		return RoleAWP, true
	case "lurker":
		return RoleLurker, true
	case "support":
		return RoleSupport, true
	case "spacetaker", "entry":
		return RoleSpacetaker, true
	case "anchor":
		return RoleAnchor, true
	case "rotator":
		return RoleRotator, true
	case "igl":
		return RoleIGL, true
	}
	return RoleUnknown, false
}

// RoleSource records how a role assignment was obtained.
type RoleSource string

const (
	RoleFromTable     RoleSource = "table"
	RoleFromHeuristic RoleSource = "heuristic"
)

// RoleAssignment is the classifier output for one player.
type RoleAssignment struct {
	TRole   Role
	CTRole  Role
	IsIGL   bool
	Primary Role
	Source  RoleSource
}

// PrimaryRole derives the primary role from side roles and the IGL flag.
// Precedence: IGL, AWP on either side, T-side Spacetaker, T-side Lurker,
// CT-side Anchor, then Support.
func PrimaryRole(tRole, ctRole Role, isIGL bool) Role {
	switch {
	case isIGL:
		return RoleIGL
	case tRole == RoleAWP || ctRole == RoleAWP:
		return RoleAWP
	case tRole == RoleSpacetaker:
		return RoleSpacetaker
	case tRole == RoleLurker:
		return RoleLurker
	case ctRole == RoleAnchor:
		return RoleAnchor
	default:
		return RoleSupport
	}
}

// ---- Raw input ----

// Stat identifies one raw counting column. Values are bit flags so a set of
// missing columns fits in a single Stat.
type Stat uint32

const (
	StatKills Stat = 1 << iota
	StatDeaths
	StatAssists
	StatHeadshots
	StatFirstKills
	StatFirstDeaths
	StatTFirstKills
	StatTFirstDeaths
	StatCTFirstKills
	StatCTFirstDeaths
	StatFlashesThrown
	StatAssistedFlashes
	StatHEThrown
	StatSmokesThrown
	StatInfernosThrown
	StatUtilityDamage
	StatTotalDamage
	StatRoundsPlayed
	StatWallbangKills
	StatNoScopeKills
	StatThroughSmokeKills
	StatBlindKills
)

// Has reports whether every flag in x is set in s.
func (s Stat) Has(x Stat) bool { return s&x == x }

// Any reports whether at least one flag in x is set in s.
func (s Stat) Any(x Stat) bool { return s&x != 0 }

// StatColumns maps canonical snake_case column names to stats.
var StatColumns = map[string]Stat{
	"kills":            StatKills,
	"deaths":           StatDeaths,
	"assists":          StatAssists,
	"headshots":        StatHeadshots,
	"first_kills":      StatFirstKills,
	"first_deaths":     StatFirstDeaths,
	"t_first_kills":    StatTFirstKills,
	"t_first_deaths":   StatTFirstDeaths,
	"ct_first_kills":   StatCTFirstKills,
	"ct_first_deaths":  StatCTFirstDeaths,
	"flashes_thrown":   StatFlashesThrown,
	"assisted_flashes": StatAssistedFlashes,
	"he_thrown":        StatHEThrown,
	"smokes_thrown":    StatSmokesThrown,
	"infernos_thrown":  StatInfernosThrown,
	"utility_damage":   StatUtilityDamage,
	"total_damage":     StatTotalDamage,
	"rounds_played":    StatRoundsPlayed,
	"wallbang_kills":   StatWallbangKills,
	"no_scope":         StatNoScopeKills,
	"through_smoke":    StatThroughSmokeKills,
	"blind_kills":      StatBlindKills,
}

// AllStats is the union of every raw stat flag.
const AllStats = StatBlindKills<<1 - 1

// RawStats holds the raw counting stats for one player at one event.
type RawStats struct {
	Kills, Deaths, Assists, Headshots int

	FirstKills, FirstDeaths     int
	TFirstKills, TFirstDeaths   int
	CTFirstKills, CTFirstDeaths int

	FlashesThrown, AssistedFlashes int
	HEThrown, SmokesThrown         int
	InfernosThrown                 int

	UtilityDamage, TotalDamage int
	RoundsPlayed               int

	WallbangKills, NoScopeKills   int
	ThroughSmokeKills, BlindKills int

	// Missing flags columns that were absent from the source table or blank
	// for this row. The zero value means every column was supplied.
	Missing Stat
}

// Get returns the value of a single stat column.
func (r *RawStats) Get(s Stat) int {
	switch s {
	case StatKills:
		return r.Kills
	case StatDeaths:
		return r.Deaths
	case StatAssists:
		return r.Assists
	case StatHeadshots:
		return r.Headshots
	case StatFirstKills:
		return r.FirstKills
	case StatFirstDeaths:
		return r.FirstDeaths
	case StatTFirstKills:
		return r.TFirstKills
	case StatTFirstDeaths:
		return r.TFirstDeaths
	case StatCTFirstKills:
		return r.CTFirstKills
	case StatCTFirstDeaths:
		return r.CTFirstDeaths
	case StatFlashesThrown:
		return r.FlashesThrown
	case StatAssistedFlashes:
		return r.AssistedFlashes
	case StatHEThrown:
		return r.HEThrown
	case StatSmokesThrown:
		return r.SmokesThrown
	case StatInfernosThrown:
		return r.InfernosThrown
	case StatUtilityDamage:
		return r.UtilityDamage
	case StatTotalDamage:
		return r.TotalDamage
	case StatRoundsPlayed:
		return r.RoundsPlayed
	case StatWallbangKills:
		return r.WallbangKills
	case StatNoScopeKills:
		return r.NoScopeKills
	case StatThroughSmokeKills:
		return r.ThroughSmokeKills
	case StatBlindKills:
		return r.BlindKills
	}
	return 0
}

// Set assigns a single stat column.
func (r *RawStats) Set(s Stat, v int) {
	switch s {
	case StatKills:
		r.Kills = v
	case StatDeaths:
		r.Deaths = v
	case StatAssists:
		r.Assists = v
	case StatHeadshots:
		r.Headshots = v
	case StatFirstKills:
		r.FirstKills = v
	case StatFirstDeaths:
		r.FirstDeaths = v
	case StatTFirstKills:
		r.TFirstKills = v
	case StatTFirstDeaths:
		r.TFirstDeaths = v
	case StatCTFirstKills:
		r.CTFirstKills = v
	case StatCTFirstDeaths:
		r.CTFirstDeaths = v
	case StatFlashesThrown:
		r.FlashesThrown = v
	case StatAssistedFlashes:
		r.AssistedFlashes = v
	case StatHEThrown:
		r.HEThrown = v
	case StatSmokesThrown:
		r.SmokesThrown = v
	case StatInfernosThrown:
		r.InfernosThrown = v
	case StatUtilityDamage:
		r.UtilityDamage = v
	case StatTotalDamage:
		r.TotalDamage = v
	case StatRoundsPlayed:
		r.RoundsPlayed = v
	case StatWallbangKills:
		r.WallbangKills = v
	case StatNoScopeKills:
		r.NoScopeKills = v
	case StatThroughSmokeKills:
		r.ThroughSmokeKills = v
	case StatBlindKills:
		r.BlindKills = v
	}
}

// Present reports whether the stat was supplied for this row.
func (r *RawStats) Present(s Stat) bool { return !r.Missing.Any(s) }

// ---- Derived and scored output ----

// Derived holds the ratio metrics computed by the metric deriver.
type Derived struct {
	KD                   float64
	HSPercentage         float64
	FirstKillSuccess     float64
	TFirstKillSuccess    float64
	CTFirstKillSuccess   float64
	FlashEfficiency      float64
	EntryRatio           float64
	TotalUtility         int
	UtilityEffectiveness float64
	UtilityDmgPerRound   float64
	Consistency          float64
	ImpactScore          float64

	// Unavailable names metrics whose inputs were missing; they hold their
	// neutral default and scoring skips them.
	Unavailable map[Feature]bool
}

// SideScore is the PIV breakdown for one side.
type SideScore struct {
	Role  Role
	RCS   float64
	ICF   float64
	SC    float64
	OSM   float64
	Basic float64
	PIV   float64
}

// Score is the combined PIV breakdown for a player.
type Score struct {
	RCS, ICF, SC, OSM float64
	PIV               float64
	T, CT             SideScore
}

// PlayerRecord is one player at one event, enriched additively by each stage.
type PlayerRecord struct {
	SteamID string
	Name    string
	Team    string
	Event   string

	Raw     RawStats
	Derived Derived
	Roles   RoleAssignment
	Score   Score

	// TeamNormalized holds within-team z-scores rescaled to [0,1] across the dataset.
	TeamNormalized map[Feature]float64
}

// TeamKey returns the (event, team) join key for the player.
func (p *PlayerRecord) TeamKey() TeamKey {
	return TeamKey{Event: p.Event, Team: p.Team}
}

// Value returns the numeric value of a player-level feature.
func (p *PlayerRecord) Value(f Feature) (float64, bool) {
	d := &p.Derived
	switch f {
	case FeatureKD:
		return d.KD, true
	case FeatureHSPercentage:
		return d.HSPercentage, true
	case FeatureFirstKillSuccess:
		return d.FirstKillSuccess, true
	case FeatureTFirstKillSuccess:
		return d.TFirstKillSuccess, true
	case FeatureCTFirstKillSuccess:
		return d.CTFirstKillSuccess, true
	case FeatureFlashEfficiency:
		return d.FlashEfficiency, true
	case FeatureEntryRatio:
		return d.EntryRatio, true
	case FeatureUtilityEffectiveness:
		return d.UtilityEffectiveness, true
	case FeatureUtilityDmgPerRound:
		return d.UtilityDmgPerRound, true
	case FeatureConsistency:
		return d.Consistency, true
	case FeatureImpactScore:
		return d.ImpactScore, true
	case FeatureRCS:
		return p.Score.RCS, true
	case FeatureICF:
		return p.Score.ICF, true
	case FeatureSC:
		return p.Score.SC, true
	case FeatureOSM:
		return p.Score.OSM, true
	case FeaturePIV:
		return p.Score.PIV, true
	case FeatureTPIV:
		return p.Score.T.PIV, true
	case FeatureCTPIV:
		return p.Score.CT.PIV, true
	}
	return 0, false
}

// TeamKey joins players to their team record.
type TeamKey struct {
	Event string
	Team  string
}

// TeamRecord holds aggregate metrics for one team at one event.
type TeamRecord struct {
	Event       string
	Team        string
	PlayerCount int

	PIVMean   float64
	PIVMax    float64
	PIVMin    float64
	PIVSpread float64

	RoleDiversity int
	RoleBalance   float64

	// Means holds the team mean of each player feature plus the role metrics.
	Means map[Feature]float64
	// Scaled holds Means min-max rescaled to [0,1] across the team set.
	Scaled map[Feature]float64

	TIR           float64
	TIRNormalized float64
	TIRDisplay    float64
}

// Key returns the (event, team) key.
func (t *TeamRecord) Key() TeamKey {
	return TeamKey{Event: t.Event, Team: t.Team}
}

// RoundOutcome is one played round.
type RoundOutcome struct {
	Event       string
	RoundNum    int
	RoundWinner string // team name, or "CT"/"T"
	CTTeam      string
	TTeam       string
}

// WinnerTeam resolves the winning team name, mapping a side letter through
// the round's side assignment.
func (r *RoundOutcome) WinnerTeam() string {
	switch ParseSide(r.RoundWinner) {
	case SideCT:
		return r.CTTeam
	case SideT:
		return r.TTeam
	}
	return strings.TrimSpace(r.RoundWinner)
}

// MatchPrediction is a head-to-head forecast between two teams at one event.
type MatchPrediction struct {
	Event           string
	TeamA           string
	TeamB           string
	TeamATIR        float64
	TeamBTIR        float64
	TeamAWinProb    float64
	PredictedWinner string
	ActualWinner    string // empty when no ground truth
	IsCorrect       bool
	HasGroundTruth  bool
}
