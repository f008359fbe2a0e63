package main

import (
	"fmt"
	"strings"

	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

// selectGroups resolves command arguments to sender groups of a saved scan.
// An argument matches a company id, a company name or a sender email. Groups
// past the unlock limit are refused.
func selectGroups(res model.ScanResult, args []string) ([]model.SenderGroup, error) {
	var out []model.SenderGroup
	for _, arg := range args {
		found := false
		want := strings.ToLower(strings.TrimSpace(arg))
		for i, c := range res.Groups {
			locked := res.IsLimited && i >= res.VisibleLimit
			if strings.ToLower(c.ID) == want || strings.ToLower(c.DisplayName) == want {
				if locked {
					return nil, fmt.Errorf("%s is locked on the free plan", c.DisplayName)
				}
				out = append(out, c.Senders...)
				found = true
				break
			}
			for _, s := range c.Senders {
				if s.Email != model.UnknownEmail && util.NormalizeEmail(s.Email) == want {
					if locked {
						return nil, fmt.Errorf("%s is locked on the free plan", s.Email)
					}
					out = append(out, s)
					found = true
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no group matches %q", arg)
		}
	}
	return out, nil
}
