package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// RawLead is an untrusted inbound lead record. Every field is optional; the
// normalizer is the only place that turns it into a Lead.
type RawLead struct {
	ID            *string `json:"id,omitempty"`
	Email         *string `json:"email,omitempty"`
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	CompanyName   *string `json:"company_name,omitempty"`
	CompanyDomain *string `json:"company_domain,omitempty"`
	RoleTitle     *string `json:"role_title,omitempty"`
	LinkedInURL   *string `json:"linkedin_url,omitempty"`
	Source        *string `json:"source,omitempty"`
	CampaignTag   *string `json:"campaign_tag,omitempty"`
}

// rawAliases maps each accepted input key to the RawLead field it fills.
// Earlier keys win when a record carries more than one alias.
var rawAliases = []struct {
	keys []string
	dst  func(r *RawLead) **string
}{
	{[]string{"id", "lead_id"}, func(r *RawLead) **string { return &r.ID }},
	{[]string{"email"}, func(r *RawLead) **string { return &r.Email }},
	{[]string{"first_name", "firstName"}, func(r *RawLead) **string { return &r.FirstName }},
	{[]string{"last_name", "lastName"}, func(r *RawLead) **string { return &r.LastName }},
	{[]string{"company_name", "companyName", "company"}, func(r *RawLead) **string { return &r.CompanyName }},
	{[]string{"company_domain", "domain", "website"}, func(r *RawLead) **string { return &r.CompanyDomain }},
	{[]string{"role_title", "title", "position"}, func(r *RawLead) **string { return &r.RoleTitle }},
	{[]string{"linkedin_url", "linkedinUrl", "linkedin"}, func(r *RawLead) **string { return &r.LinkedInURL }},
	{[]string{"source"}, func(r *RawLead) **string { return &r.Source }},
	{[]string{"campaign_tag", "campaignTag"}, func(r *RawLead) **string { return &r.CampaignTag }},
}

// UnmarshalJSON accepts the canonical snake_case keys plus the camelCase and
// short aliases that CSV exports and webhooks use. Non-string scalars are
// stringified; nulls, objects and arrays are ignored.
func (r *RawLead) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return eris.Wrap(err, "model: decode raw lead")
	}
	*r = RawLeadFromMap(m)
	return nil
}

// RawLeadFromMap builds a RawLead from a loosely typed key/value record.
func RawLeadFromMap(m map[string]any) RawLead {
	var r RawLead
	for _, a := range rawAliases {
		for _, k := range a.keys {
			v, ok := m[k]
			if !ok {
				continue
			}
			if s, ok := scalarString(v); ok {
				*a.dst(&r) = &s
				break
			}
		}
	}
	return r
}

// RawLeadFromStrings is RawLeadFromMap for CSV rows.
func RawLeadFromStrings(m map[string]string) RawLead {
	anyMap := make(map[string]any, len(m))
	for k, v := range m {
		if v == "" {
			continue
		}
		anyMap[k] = v
	}
	return RawLeadFromMap(anyMap)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	case int, int64:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}
