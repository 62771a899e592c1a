package reba

import (
	"fmt"
	"strings"
)

// RiskLevel classifies a final REBA score. The zero value means the score
// could not be computed.
type RiskLevel int

const (
	RiskInsufficientData RiskLevel = iota
	RiskNegligible
	RiskLow
	RiskMedium
	RiskHigh
	RiskVeryHigh
)

type riskInfo struct {
	name        string
	color       string
	description string
	actionLevel string
	action      string
}

var riskTable = [...]riskInfo{
	RiskInsufficientData: {"insufficient data", "#808080", "Insufficient data to assess risk", "", "Re-measure with all body parts visible"},
	RiskNegligible:       {"negligible", "#00FF00", "Negligible risk", "AL1", "No action necessary"},
	RiskLow:              {"low", "#90EE90", "Low risk", "AL2", "Action may be necessary"},
	RiskMedium:           {"medium", "#FFFF00", "Medium risk", "AL3", "Action necessary"},
	RiskHigh:             {"high", "#FFA500", "High risk", "AL4", "Action necessary soon"},
	RiskVeryHigh:         {"very_high", "#FF0000", "Very high risk", "AL5", "Action necessary now"},
}

// RiskLevels lists the scored levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskNegligible, RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}

func (r RiskLevel) info() riskInfo {
	if r < 0 || int(r) >= len(riskTable) {
		return riskInfo{name: fmt.Sprintf("risk(%d)", int(r))}
	}
	return riskTable[r]
}

func (r RiskLevel) String() string { return r.info().name }

// Color returns the display colour as a hex RGB string.
func (r RiskLevel) Color() string { return r.info().color }

// Description returns a short human-readable label.
func (r RiskLevel) Description() string { return r.info().description }

// ActionLevel returns AL1..AL5, or "" when there is no score.
func (r RiskLevel) ActionLevel() string { return r.info().actionLevel }

// Action returns the recommended intervention.
func (r RiskLevel) Action() string { return r.info().action }

// Known reports whether r is one of the defined levels.
func (r RiskLevel) Known() bool { return r >= 0 && int(r) < len(riskTable) }

// RiskLevelFor maps a final score to its band: 1 negligible, 2-3 low,
// 4-7 medium, 8-10 high, 11-15 very high.
func RiskLevelFor(score int) (RiskLevel, error) {
	switch {
	case score < 1 || score > 15:
		return RiskInsufficientData, fmt.Errorf("%w: final score %d not in 1..15", ErrScoreOutOfRange, score)
	case score == 1:
		return RiskNegligible, nil
	case score <= 3:
		return RiskLow, nil
	case score <= 7:
		return RiskMedium, nil
	case score <= 10:
		return RiskHigh, nil
	default:
		return RiskVeryHigh, nil
	}
}

// ParseRiskLevel accepts the String form, with spaces or underscores.
func ParseRiskLevel(s string) (RiskLevel, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	for i, info := range riskTable {
		if strings.ReplaceAll(info.name, " ", "_") == norm {
			return RiskLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk level %q", s)
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Known() {
		return nil, fmt.Errorf("unknown risk level %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	v, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
