package secrets

import (
	_ "embed"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"sync"
)

const (
	base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
	hexChars    = "1234567890abcdefABCDEF"
	masked      = "<masked>"
)

//go:embed regex_rules.json
var regexRules []byte

type entropy struct {
	Group int     `json:"group"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type AllowRule struct {
	Description string `json:"description"`
	Regex       string `json:"regex"`
}

type SecretRule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Regex       string      `json:"regex"`
	Entropies   []entropy   `json:"entropies"`
	AllowRules  []AllowRule `json:"allowRules"`
	SpecialMask string      `json:"specialMask"`
}

type SecretRules struct {
	Rules      []SecretRule `json:"rules"`
	AllowRules []AllowRule  `json:"allowRules"`
}

type secretRegexp struct {
	QueryName   string
	Regex       *regexp.Regexp
	Entropies   []entropy
	AllowRules  []*regexp.Regexp
	SpecialMask *regexp.Regexp
}

var (
	loadOnce     sync.Once
	loadedRules  []secretRegexp
	globalAllows []*regexp.Regexp
	loadErr      error
)

func loadRegexps() ([]secretRegexp, []*regexp.Regexp, error) {
	var secretRules SecretRules
	if err := json.Unmarshal(regexRules, &secretRules); err != nil {
		return nil, nil, err
	}

	var regexes []secretRegexp
	for _, rule := range secretRules.Rules {
		compiled, err := regexp.Compile(rule.Regex)
		if err != nil {
			return nil, nil, err
		}
		sr := secretRegexp{
			QueryName:  rule.Name,
			Regex:      compiled,
			Entropies:  rule.Entropies,
			AllowRules: compileAll(rule.AllowRules),
		}
		if rule.SpecialMask != "" {
			sr.SpecialMask, _ = regexp.Compile(rule.SpecialMask)
		}
		regexes = append(regexes, sr)
	}
	return regexes, compileAll(secretRules.AllowRules), nil
}

func compileAll(rules []AllowRule) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, r := range rules {
		if compiled, err := regexp.Compile(r.Regex); err == nil {
			out = append(out, compiled)
		}
	}
	return out
}

// checkEntropyInterval - verifies if a given token's entropy is within expected bounds
func checkEntropyInterval(e entropy, token string) bool {
	return insideInterval(e, calculateEntropy(token, base64Chars)) || insideInterval(e, calculateEntropy(token, hexChars))
}

func insideInterval(e entropy, v float64) bool {
	return v >= e.Min && v <= e.Max
}

// calculateEntropy - Shannon entropy of the characters of token that belong to charSet
func calculateEntropy(token, charSet string) float64 {
	if token == "" {
		return 0
	}
	charMap := map[rune]float64{}
	for _, char := range token {
		if strings.ContainsRune(charSet, char) {
			charMap[char]++
		}
	}

	var freq float64
	length := float64(len(token))
	for _, count := range charMap {
		freq += count * math.Log2(count)
	}
	return math.Log2(length) - freq/length
}

func replaceMatches(text string, regexps []secretRegexp, allowRegexes []*regexp.Regexp) string {
	for _, re := range regexps {
		allows := append(append([]*regexp.Regexp{}, re.AllowRules...), allowRegexes...)
		text = re.Regex.ReplaceAllStringFunc(text, func(match string) string {
			for _, allow := range allows {
				if allow.MatchString(match) {
					return match
				}
			}
			groups := re.Regex.FindStringSubmatch(match)
			for _, e := range re.Entropies {
				if e.Group < len(groups) && !checkEntropyInterval(e, groups[e.Group]) {
					return match
				}
			}
			prefix := ""
			if re.SpecialMask != nil {
				prefix = re.SpecialMask.FindString(match)
			}
			return prefix + masked
		})
	}
	return text
}

// Mask replaces credentials found in text with <masked>, keeping the part of
// the match that names the secret. Text is returned unchanged if the rules
// cannot be loaded.
func Mask(text string) string {
	loadOnce.Do(func() {
		loadedRules, globalAllows, loadErr = loadRegexps()
	})
	if loadErr != nil {
		return text
	}
	return replaceMatches(text, loadedRules, globalAllows)
}
