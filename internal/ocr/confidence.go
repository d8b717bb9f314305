package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	reCPF    = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)
	reAmount = regexp.MustCompile(`r\$\s?\d{1,3}(\.\d{3})*(,\d{2})?`)
	reDocKw  = regexp.MustCompile(`\b(nome|filia[cç][aã]o|nascimento|registro|certid[aã]o|identidade|cpf)\b`)
)

// heuristicConfidence scores decoded text by the artifacts Brazilian civil documents carry.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCPF.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.1
	}
	if reDocKw.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
