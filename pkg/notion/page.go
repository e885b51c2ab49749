package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// PageFields flattens a page's properties to trimmed plain-text values keyed
// by lowercased property name with spaces replaced by underscores, so
// "Company Name" becomes company_name. Empty values are omitted.
func PageFields(page notionapi.Page) map[string]string {
	fields := make(map[string]string, len(page.Properties))
	for name, prop := range page.Properties {
		v := strings.TrimSpace(propertyText(prop))
		if v == "" {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		fields[key] = v
	}
	return fields
}

func propertyText(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.StatusProperty:
		return p.Status.Name
	}
	return ""
}

func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
