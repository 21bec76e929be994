package model

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Listing field limits.
const (
	TitleMaxChars       = 100
	DescriptionMinWords = 5
	DescriptionMaxWords = 200
	DescriptionMaxBytes = 8000
	MinImages           = 2
	MaxImages           = 10
	MaxTags             = 10
	MaxTagChars         = 30
	LocationMaxChars    = 100
	MaxImageURLChars    = 1024
)

// ValidateListing checks the seller-provided fields of l and returns a map
// of field name to problem.  An empty map means the listing is valid.
// Status, ids and timestamps are not inspected.
func ValidateListing(l *Listing) map[string]string {
	problems := make(map[string]string)

	title := strings.TrimSpace(l.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > TitleMaxChars {
		problems["title"] = fmt.Sprintf("must be 1-%d characters", TitleMaxChars)
	}
	if n := len(strings.Fields(l.Description)); n < DescriptionMinWords || n > DescriptionMaxWords {
		problems["description"] = fmt.Sprintf("must be %d-%d words", DescriptionMinWords, DescriptionMaxWords)
	} else if len(l.Description) > DescriptionMaxBytes {
		problems["description"] = fmt.Sprintf("at most %d bytes", DescriptionMaxBytes)
	}
	if l.Price < 0 {
		problems["price"] = "must be zero or positive"
	}
	if _, ok := ParseCategory(string(l.Category)); !ok {
		problems["category"] = "unknown category"
	}
	if _, ok := ParseCondition(string(l.Condition)); !ok {
		problems["condition"] = "unknown condition"
	}
	if n := len(l.Images); n < MinImages || n > MaxImages {
		problems["images"] = fmt.Sprintf("must contain %d-%d image urls", MinImages, MaxImages)
	} else {
		for i, raw := range l.Images {
			if len(raw) > MaxImageURLChars {
				problems["images"] = fmt.Sprintf("image %d url is longer than %d characters", i+1, MaxImageURLChars)
				break
			}
			if !isImageURL(raw) {
				problems["images"] = fmt.Sprintf("image %d is not an absolute http(s) url", i+1)
				break
			}
		}
	}
	if len(l.Tags) > MaxTags {
		problems["tags"] = fmt.Sprintf("at most %d tags", MaxTags)
	} else {
		for _, t := range l.Tags {
			if n := utf8.RuneCountInString(strings.TrimSpace(t)); n == 0 || n > MaxTagChars {
				problems["tags"] = fmt.Sprintf("each tag must be 1-%d characters", MaxTagChars)
				break
			}
		}
	}
	if utf8.RuneCountInString(l.Location) > LocationMaxChars {
		problems["location"] = fmt.Sprintf("at most %d characters", LocationMaxChars)
	}
	return problems
}

// NormalizeListing trims text fields and lower-cases enums and tags in
// place so stored values are canonical.
func NormalizeListing(l *Listing) {
	l.Title = strings.TrimSpace(l.Title)
	l.Description = strings.TrimSpace(l.Description)
	l.Location = strings.TrimSpace(l.Location)
	if c, ok := ParseCategory(string(l.Category)); ok {
		l.Category = c
	}
	if c, ok := ParseCondition(string(l.Condition)); ok {
		l.Condition = c
	}
	for i := range l.Images {
		l.Images[i] = strings.TrimSpace(l.Images[i])
	}
	tags := l.Tags[:0]
	seen := make(map[string]struct{}, len(l.Tags))
	for _, t := range l.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	l.Tags = tags
}

func isImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
