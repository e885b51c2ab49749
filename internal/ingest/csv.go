package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]model.RawLead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// ReadCSV parses a lead export. The header row names the columns; headers
// are matched after trimming and lowercasing with spaces turned into
// underscores, so "First Name" and first_name are the same column. Any
// RawLead alias is accepted. Blank rows are skipped.
func ReadCSV(r io.Reader) ([]model.RawLead, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: csv has no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = headerKey(h)
	}

	var raws []model.RawLead
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read csv line %d", line)
		}

		fields := make(map[string]string, len(cols))
		for i, v := range row {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				fields[cols[i]] = v
			}
		}
		if len(fields) == 0 {
			continue
		}
		raws = append(raws, model.RawLeadFromStrings(fields))
	}
	return raws, nil
}

// compactHeaders maps lowercased run-together headers to RawLead keys.
var compactHeaders = map[string]string{
	"firstname":     "first_name",
	"lastname":      "last_name",
	"companyname":   "company_name",
	"companydomain": "company_domain",
	"roletitle":     "role_title",
	"job_title":     "role_title",
	"jobtitle":      "role_title",
	"linkedinurl":   "linkedin_url",
	"campaigntag":   "campaign_tag",
	"email_address": "email",
}

// headerKey maps a display header such as "First Name" or "firstName" to a
// RawLead key.
func headerKey(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(h))
	if alias, ok := compactHeaders[key]; ok {
		return alias
	}
	return key
}
