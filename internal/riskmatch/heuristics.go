package riskmatch

import "regexp"

// lookup is an ordered keyword table; the first matching entry wins.
type lookup []struct {
	re    *regexp.Regexp
	value string
}

func (l lookup) find(s, fallback string) string {
	for _, e := range l {
		if e.re.MatchString(s) {
			return e.value
		}
	}
	return fallback
}

type ladder []struct {
	re    *regexp.Regexp
	score int
}

func (l ladder) score(s string) int {
	for _, e := range l {
		if e.re.MatchString(s) {
			return e.score
		}
	}
	return 3
}

func kw(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + expr + `)\b`)
}

var (
	threats = lookup{
		{kw(`attacks?|attackers?`), "External attack against systems or data"},
		{kw(`breach(?:es)?`), "Breach of security or contractual obligations"},
		{kw(`compromise[sd]?`), "Compromise of systems or information"},
		{kw(`malicious`), "Malicious activity by internal or external actors"},
		{kw(`threats?`), "Identified threat to the organization"},
	}

	vulnerabilities = lookup{
		{kw(`vulnerabilit(?:y|ies)`), "Unremediated technical vulnerability"},
		{kw(`weakness(?:es)?`), "Control weakness"},
		{kw(`gaps?`), "Control or process gap"},
		{kw(`deficienc(?:y|ies)`), "Control deficiency"},
		{kw(`exposures?|exposed`), "Exposure of assets or data"},
	}

	impacts = lookup{
		{kw(`penalty|penalties|fines?`), "Financial penalty or regulatory sanction"},
		{kw(`breach(?:es)?`), "Loss or disclosure of protected data"},
		{kw(`outages?|downtime`), "Service outage and loss of availability"},
	}

	impactLadder = ladder{
		{kw(`critical|severe|major|catastrophic`), 5},
		{kw(`high|significant`), 4},
		{kw(`medium|moderate`), 3},
		{kw(`low|minor|negligible`), 2},
	}

	likelihoodLadder = ladder{
		{kw(`certain|imminent|ongoing`), 5},
		{kw(`likely|frequent|frequently|probable|repeated`), 4},
		{kw(`unlikely|rare|rarely|remote`), 2},
	}
)

// Threat names the threat a sentence describes, or a generic placeholder.
func Threat(s string) string {
	return threats.find(s, "Unspecified threat")
}

// Vulnerability names the weakness a sentence describes, or a generic placeholder.
func Vulnerability(s string) string {
	return vulnerabilities.find(s, "Unspecified vulnerability")
}

// ImpactDescription describes the consequence a sentence implies.
func ImpactDescription(s string) string {
	return impacts.find(s, "Potential adverse impact on operations or compliance posture")
}

// Impact estimates impact on a 1-5 scale from severity keywords; 3 when none match.
func Impact(s string) int {
	return impactLadder.score(s)
}

// Likelihood estimates likelihood on a 1-5 scale from frequency keywords; 3 when none match.
func Likelihood(s string) int {
	return likelihoodLadder.score(s)
}
