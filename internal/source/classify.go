package source

import (
	"net/url"
	"strings"
)

// Domain tables. Matching is by exact host or any parent domain
// (pubmed.ncbi.nlm.nih.gov matches ncbi.nlm.nih.gov).

var academicDomains = map[string]struct{}{
	"arxiv.org":               {},
	"ncbi.nlm.nih.gov":        {},
	"pubmed.ncbi.nlm.nih.gov": {},
	"nature.com":              {},
	"science.org":             {},
	"sciencedirect.com":       {},
	"springer.com":            {},
	"link.springer.com":       {},
	"jstor.org":               {},
	"ieee.org":                {},
	"acm.org":                 {},
	"plos.org":                {},
	"semanticscholar.org":     {},
	"scholar.google.com":      {},
	"researchgate.net":        {},
	"ssrn.com":                {},
}

// Intergovernmental organizations without .gov/.mil suffixes.
var officialDomains = map[string]struct{}{
	"europa.eu":     {},
	"who.int":       {},
	"un.org":        {},
	"imf.org":       {},
	"worldbank.org": {},
	"oecd.org":      {},
	"wto.org":       {},
	"nato.int":      {},
	"ecb.europa.eu": {},
}

// High-credibility news allowlist.
var newsHighDomains = map[string]struct{}{
	"reuters.com":        {},
	"apnews.com":         {},
	"bbc.com":            {},
	"bbc.co.uk":          {},
	"npr.org":            {},
	"theguardian.com":    {},
	"nytimes.com":        {},
	"wsj.com":            {},
	"washingtonpost.com": {},
	"ft.com":             {},
	"economist.com":      {},
	"bloomberg.com":      {},
	"afp.com":            {},
}

// Broader known publishers classified News/Medium.
var newsMediumDomains = map[string]struct{}{
	"cnn.com":         {},
	"cnbc.com":        {},
	"nbcnews.com":     {},
	"abcnews.go.com":  {},
	"cbsnews.com":     {},
	"forbes.com":      {},
	"time.com":        {},
	"theatlantic.com": {},
	"politico.com":    {},
	"axios.com":       {},
	"aljazeera.com":   {},
	"dw.com":          {},
	"france24.com":    {},
	"news.yahoo.com":  {},
	"usatoday.com":    {},
	"latimes.com":     {},
	"theverge.com":    {},
	"arstechnica.com": {},
	"wired.com":       {},
	"techcrunch.com":  {},
	"espn.com":        {},
	"skysports.com":   {},
}

var referenceDomains = map[string]struct{}{
	"wikipedia.org":    {},
	"en.wikipedia.org": {},
	"britannica.com":   {},
	"wiktionary.org":   {},
	"wikidata.org":     {},
	"scholarpedia.org": {},
}

// Extendable "reputable commercial" list; upgrades Commercial/Low to
// Commercial/Medium.
var reputableCommercialDomains = map[string]struct{}{
	"github.com":        {},
	"stackoverflow.com": {},
	"medium.com":        {},
	"microsoft.com":     {},
	"google.com":        {},
	"ibm.com":           {},
	"mozilla.org":       {},
	"cloudflare.com":    {},
	"aws.amazon.com":    {},
	"statista.com":      {},
	"gartner.com":       {},
	"mckinsey.com":      {},
}

// Classify assigns a domain type and credibility tier from the URL host
// alone. It never fails: hosts it cannot place land in Commercial/Low.
func Classify(canonicalURL string) (DomainType, CredibilityTier) {
	u, err := url.Parse(canonicalURL)
	if err != nil || u.Host == "" {
		return DomainOther, TierLow
	}
	host := strings.ToLower(u.Hostname())

	// Synthetic knowledge-fallback hits count as reference material
	if host == "knowledge.internal" {
		return DomainReference, TierMedium
	}

	switch {
	case hasSuffixDomain(host, ".edu"), isAcademicCountrySuffix(host):
		return DomainAcademic, TierHigh
	case matchDomain(host, academicDomains):
		return DomainAcademic, TierHigh
	case hasSuffixDomain(host, ".gov"), hasSuffixDomain(host, ".mil"):
		return DomainOfficial, TierHigh
	case matchDomain(host, officialDomains):
		return DomainOfficial, TierHigh
	case matchDomain(host, newsHighDomains):
		return DomainNews, TierHigh
	case matchDomain(host, newsMediumDomains), looksLikeNewsHost(host):
		return DomainNews, TierMedium
	case matchDomain(host, referenceDomains):
		return DomainReference, TierMedium
	case matchDomain(host, reputableCommercialDomains):
		return DomainCommercial, TierMedium
	default:
		return DomainCommercial, TierLow
	}
}

// matchDomain reports whether host equals or is a subdomain of any entry.
func matchDomain(host string, table map[string]struct{}) bool {
	if _, ok := table[host]; ok {
		return true
	}
	for {
		idx := strings.Index(host, ".")
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := table[host]; ok {
			return true
		}
	}
}

// hasSuffixDomain matches ".edu" against both "mit.edu" and a bare "edu" label.
func hasSuffixDomain(host, suffix string) bool {
	return strings.HasSuffix(host, suffix)
}

// isAcademicCountrySuffix matches ".ac.<cc>" hosts (ac.uk, ac.jp, ...).
func isAcademicCountrySuffix(host string) bool {
	labels := strings.Split(host, ".")
	for i, l := range labels {
		if l == "ac" && i > 0 && i == len(labels)-2 {
			return true
		}
	}
	return false
}

// looksLikeNewsHost is the broad heuristic for publisher-ish hosts that are
// not on an allowlist.
func looksLikeNewsHost(host string) bool {
	for _, marker := range []string{"news.", ".news", "herald", "tribune", "gazette", "times.", "post.", "daily"} {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return false
}
