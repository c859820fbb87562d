package normalize

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnknownProfile is returned by ParseProfile for names outside the registry.
var ErrUnknownProfile = errors.New("unknown normalization profile")

// Profile names a compaction applied after timestamp canonicalization.
// ProfileNone applies canonicalization only.
type Profile string

const (
	ProfileNone           Profile = ""
	ProfileQuotec         Profile = "quotec"
	ProfileQuoteDetail    Profile = "quote_detail"
	ProfilePankou         Profile = "pankou"
	ProfileKline          Profile = "kline"
	ProfileCapitalFlow    Profile = "capital_flow"
	ProfileCapitalHistory Profile = "capital_history"
	ProfileIncome         Profile = "income"
	ProfileBalance        Profile = "balance"
	ProfileCashFlow       Profile = "cash_flow"
	ProfileIndicator      Profile = "indicator"
	ProfileTopHolders     Profile = "top_holders"
	ProfileFundNavHistory Profile = "fund_nav_history"
	ProfileSuggestStock   Profile = "suggest_stock"
)

// profileFunc reshapes a canonicalized document. It returns false when the
// document does not have the expected shape.
type profileFunc func(doc gjson.Result, loc *time.Location) (any, bool)

var profiles = map[Profile]profileFunc{
	ProfileQuotec:         quotec,
	ProfileQuoteDetail:    quoteDetail,
	ProfilePankou:         pankou,
	ProfileKline:          kline,
	ProfileCapitalFlow:    capitalFlow,
	ProfileCapitalHistory: capitalHistory,
	ProfileIncome:         income,
	ProfileBalance:        balance,
	ProfileCashFlow:       cashFlow,
	ProfileIndicator:      indicator,
	ProfileTopHolders:     topHolders,
	ProfileFundNavHistory: fundNavHistory,
	ProfileSuggestStock:   suggestStock,
}

// ParseProfile resolves a profile name. "" and "none" map to ProfileNone.
func ParseProfile(name string) (Profile, error) {
	if name == "" || name == "none" {
		return ProfileNone, nil
	}
	p := Profile(name)
	if _, ok := profiles[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Profiles lists every registered profile in name order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether p is ProfileNone or a registered profile.
func (p Profile) Valid() bool {
	if p == ProfileNone {
		return true
	}
	_, ok := profiles[p]
	return ok
}
