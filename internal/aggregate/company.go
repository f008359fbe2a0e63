package aggregate

import (
	"sort"
	"strings"

	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

// CompanyKey decides the company group a sender belongs to.
//   - unresolved email: keyed and named by the sender name
//   - consumer mailbox domain (gmail.com, ...): keyed by the literal email
//   - otherwise: keyed by root domain, named after its first label
func CompanyKey(s model.SenderGroup) (id, name, domain string) {
	if util.IsUnresolved(s.Email) {
		name := displayName(s.SenderName)
		return name, name, ""
	}
	full := util.DomainOf(s.Email)
	if full == "" || util.IsGenericDomain(full) {
		return util.NormalizeEmail(s.Email), s.SenderName, ""
	}
	root := util.RootDomain(full)
	label := root
	if dot := strings.IndexByte(root, '.'); dot > 0 {
		label = root[:dot]
	}
	return root, util.Capitalize(label), root
}

// RollupToCompanies groups senders by CompanyKey. Each sender lands in exactly
// one company. The result is sorted by MaxScore desc, then TotalCount desc,
// with first-seen order kept for ties.
func RollupToCompanies(senders []model.SenderGroup) []model.CompanyGroup {
	var out []model.CompanyGroup
	index := make(map[string]int)

	for _, s := range senders {
		id, name, domain := CompanyKey(s)
		i, ok := index[id]
		if !ok {
			out = append(out, model.CompanyGroup{ID: id, DisplayName: name, Domain: domain})
			i = len(out) - 1
			index[id] = i
		}
		c := &out[i]
		c.Senders = append(c.Senders, clone(s))
		c.TotalCount += s.Count
		if s.MaxScore > c.MaxScore {
			c.MaxScore = s.MaxScore
		}
	}

	SortCompanies(out)
	return out
}

// SortCompanies orders company groups by MaxScore desc, then TotalCount desc.
func SortCompanies(groups []model.CompanyGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].MaxScore != groups[j].MaxScore {
			return groups[i].MaxScore > groups[j].MaxScore
		}
		return groups[i].TotalCount > groups[j].TotalCount
	})
}

// Senders flattens company groups back into their sender groups.
func Senders(groups []model.CompanyGroup) []model.SenderGroup {
	var out []model.SenderGroup
	for _, c := range groups {
		out = append(out, c.Senders...)
	}
	return out
}
