// Package normalize turns raw inbound lead records into canonical leads.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadflow/internal/model"
)

// suffixRe matches one trailing legal-entity suffix. A separator (comma or
// whitespace) is required so names like "Costco" keep their ending.
var suffixRe = regexp.MustCompile(`(?i)(?:\s*,\s*|\s+)(Inc\.?|LLC|Corp\.?|Ltd\.?|Co\.?|LP|LLP|PLC|GmbH|S\.?A\.?|Pty\.?\s*Ltd\.?)$`)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// titleMap maps lowercased title prefixes to canonical abbreviations.
var titleMap = map[string]string{
	"chief executive officer":  "CEO",
	"ceo":                      "CEO",
	"chief financial officer":  "CFO",
	"cfo":                      "CFO",
	"chief technology officer": "CTO",
	"cto":                      "CTO",
	"chief operating officer":  "COO",
	"coo":                      "COO",
	"chief marketing officer":  "CMO",
	"cmo":                      "CMO",
	"chief revenue officer":    "CRO",
	"cro":                      "CRO",
	"vice president":           "VP",
	"vp":                       "VP",
}

// titleKeys holds titleMap keys, longest first, so "chief executive officer"
// is tried before any shorter key could claim the input.
var titleKeys = func() []string {
	keys := make([]string, 0, len(titleMap))
	for k := range titleMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// CleanCompanyName trims the name and strips one trailing legal suffix.
func CleanCompanyName(name string) string {
	name = clean(name)
	return strings.TrimSpace(suffixRe.ReplaceAllString(name, ""))
}

// CleanDomain reduces a URL or host to a bare lowercase domain.
func CleanDomain(domain string) string {
	d := clean(domain)
	d = schemeRe.ReplaceAllString(d, "")
	if len(d) >= 4 && strings.EqualFold(d[:4], "www.") {
		d = d[4:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// NormalizeTitle canonicalizes a leading C-suite or VP phrase. Titles that
// match no key are returned trimmed.
func NormalizeTitle(title string) string {
	t := clean(title)
	lower := strings.ToLower(t)
	for _, key := range titleKeys {
		if lower == key || strings.HasPrefix(lower, key+" ") {
			return titleMap[key] + t[len(key):]
		}
	}
	return t
}

// ValidEmail is a syntactic check only; deliverability is not verified.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CleanEmail lowercases and trims an email address.
func CleanEmail(email string) string {
	return strings.ToLower(clean(email))
}

// Normalize builds a canonical lead. source and campaignTag override values
// carried by the raw record when non-empty.
func Normalize(raw model.RawLead, source model.Source, campaignTag string) model.Lead {
	now := time.Now().UTC()

	id := str(raw.ID)
	if id == "" {
		id = uuid.New().String()
	}

	if source == "" {
		if s, ok := model.ParseSource(str(raw.Source)); ok {
			source = s
		} else {
			source = model.SourceManual
		}
	}
	if campaignTag == "" {
		campaignTag = str(raw.CampaignTag)
	}

	return model.Lead{
		ID:            id,
		Email:         CleanEmail(str(raw.Email)),
		FirstName:     str(raw.FirstName),
		LastName:      str(raw.LastName),
		CompanyName:   CleanCompanyName(str(raw.CompanyName)),
		CompanyDomain: CleanDomain(str(raw.CompanyDomain)),
		RoleTitle:     NormalizeTitle(str(raw.RoleTitle)),
		LinkedInURL:   str(raw.LinkedInURL),
		Source:        source,
		CampaignTag:   campaignTag,
		Status:        model.StatusIngested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return clean(*p)
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
