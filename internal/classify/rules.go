package classify

// Weights of each scoring tier. A tier contributes at most once per record.
const (
	WeightHigh           = 10
	WeightMedium         = 5
	WeightLow            = 1
	WeightInfrastructure = 5
	WeightNative         = 1000

	DefaultThreshold = 1
)

// Rules holds the tunable vocabulary and weights of the classifier.
type Rules struct {
	High                  []string
	Medium                []string
	Low                   []string
	Transactional         []string
	InfrastructureDomains []string // matched against the sender domain suffix
	InfrastructureLocals  []string // matched against the local part prefix

	WeightHigh           int
	WeightMedium         int
	WeightLow            int
	WeightInfrastructure int
	WeightNative         int

	// Threshold separates Manual (score >= Threshold) from Ignored.
	Threshold int
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		High: []string{
			"unsubscribe", "opt-out", "opt out", "view in browser", "view online",
			"manage preferences", "email preferences", "mailing list",
		},
		Medium: []string{
			"sale", "offer", "discount", "promo", "exclusive", "deal", "weekly", "daily",
			"digest", "newsletter", "edition", "limited-time", "limited time", "% off",
		},
		Low: []string{
			"update", "news", "alert", "notification", "invite", "join", "welcome",
		},
		Transactional: []string{
			"order", "receipt", "shipped", "delivery", "invoice", "payment",
			"password", "verification code", "security alert",
		},
		InfrastructureDomains: []string{
			"mailchimp.com", "mcsv.net", "mcdlv.net", "list-manage.com", "sendgrid.net",
			"mailgun.org", "sparkpostmail.com", "amazonses.com", "klaviyomail.com",
			"hubspotemail.net", "substack.com", "constantcontact.com", "sendinblue.com",
			"exacttarget.com", "rsgsv.net", "cmail19.com", "cmail20.com", "beehiiv.com",
		},
		InfrastructureLocals: []string{
			"noreply", "no-reply", "donotreply", "newsletter", "news", "marketing",
			"promo", "offers", "info", "updates", "hello", "digest",
		},
		WeightHigh:           WeightHigh,
		WeightMedium:         WeightMedium,
		WeightLow:            WeightLow,
		WeightInfrastructure: WeightInfrastructure,
		WeightNative:         WeightNative,
		Threshold:            DefaultThreshold,
	}
}

// Extend appends extra vocabulary to the tiers. Empty slices leave a tier as is.
func (r Rules) Extend(high, medium, low, transactional []string) Rules {
	r.High = append(append([]string(nil), r.High...), high...)
	r.Medium = append(append([]string(nil), r.Medium...), medium...)
	r.Low = append(append([]string(nil), r.Low...), low...)
	r.Transactional = append(append([]string(nil), r.Transactional...), transactional...)
	return r
}
