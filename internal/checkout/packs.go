package checkout

import (
	"fmt"
	"strconv"
	"strings"
)

// Pack is a purchasable token bundle. AmountMinor is the price in the minor
// unit of the configured currency.
type Pack struct {
	ID           string `json:"id"`
	TokenCredits int64  `json:"token_credits"`
	AmountMinor  int64  `json:"amount_minor"`
}

// ParsePacks parses the "id=credits:amount" comma list from configuration,
// e.g. "starter=1000000:9900,plus=5000000:39900".
func ParsePacks(raw string) ([]Pack, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no checkout packs configured")
	}

	seen := map[string]bool{}
	var packs []Pack
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, def, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pack entry %q", entry)
		}
		creditsRaw, amountRaw, ok := strings.Cut(def, ":")
		if !ok {
			return nil, fmt.Errorf("invalid pack entry %q", entry)
		}

		name = strings.ToLower(strings.TrimSpace(name))
		credits, err := strconv.ParseInt(strings.TrimSpace(creditsRaw), 10, 64)
		if err != nil || credits <= 0 {
			return nil, fmt.Errorf("invalid pack credits in %q", entry)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(amountRaw), 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("invalid pack amount in %q", entry)
		}
		if name == "" || seen[name] {
			return nil, fmt.Errorf("invalid pack name in %q", entry)
		}

		seen[name] = true
		packs = append(packs, Pack{ID: name, TokenCredits: credits, AmountMinor: amount})
	}
	if len(packs) == 0 {
		return nil, fmt.Errorf("no checkout packs configured")
	}
	return packs, nil
}

// FindPack returns the pack with the given id, or nil.
func FindPack(packs []Pack, id string) *Pack {
	id = strings.ToLower(strings.TrimSpace(id))
	for i := range packs {
		if packs[i].ID == id {
			return &packs[i]
		}
	}
	return nil
}
