package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeTenantDomain slugifies every dot-separated label, so
// "Acme Corp.Example.com" becomes "acme-corp.example.com".
func NormalizeTenantDomain(raw string) string {
	labels := strings.Split(strings.TrimSpace(raw), ".")
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if s := slug.Make(label); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ".")
}
