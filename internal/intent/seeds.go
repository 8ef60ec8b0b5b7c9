package intent

// stopWords are filtered out when extracting keywords from titles, headings,
// and free-text descriptions.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"for": true, "of": true, "in": true, "on": true, "at": true, "to": true,
	"with": true, "by": true, "from": true, "about": true, "into": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"we": true, "you": true, "your": true, "our": true, "their": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"how": true, "why": true, "can": true, "do": true, "does": true,
	"get": true, "all": true, "more": true, "most": true, "other": true,
	"new": true, "best": true, "top": true, "free": true, "online": true,
	"home": true, "page": true, "welcome": true, "us": true, "here": true,
	"not": true, "no": true, "will": true, "as": true, "if": true,
}

// brandTemplates build brand-core queries around the audited brand name.
var brandTemplates = []string{
	"what is %s",
	"%s reviews",
	"is %s legit",
	"%s pricing",
}

// comparativeTemplates pit the brand against its generic category.
var comparativeTemplates = []string{
	"%s vs competitors",
	"best alternatives to %s",
	"%s compared to other options",
}

// evidenceTemplates seek cited, source-backed answers.
var evidenceTemplates = []string{
	"according to %s",
	"%s data and statistics",
}

// discoveryTemplates are category-agnostic queries that surface which sites
// assistants recommend for a topic.
var discoveryTemplates = []string{
	"best websites for %s",
	"where to find reliable information about %s",
	"top recommended resources for %s",
}

// productTemplates turn a product or service keyword into purchase-intent
// queries.
var productTemplates = []string{
	"best %s",
	"%s recommendations",
}

// localTemplates apply only when location seeds exist.
var localTemplates = []string{
	"%s in %s",
	"best %s near %s",
}
