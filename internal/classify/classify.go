// Package classify labels archived posts with the configured keyword topics.
// A keyword is a regular-expression fragment matched case-insensitively at a
// word boundary, so "privatiza" also hits "privatização" and patterns like
// "cal(a)? a boca" work as written.
package classify

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/config"
)

// Other is the fallback label for posts that match no configured topic.
const Other = "other"

type topic struct {
	name     string
	patterns []*regexp.Regexp
}

// Classifier assigns topic labels to post text. Build one with New; the
// zero value is not usable.
type Classifier struct {
	topics   []topic
	subjects map[string]bool
}

// New compiles the configured topic groups. subjects names the topics that
// count toward the subject rollup in Summarize; it may be empty.
func New(groups []config.TopicGroup, subjects []string) (*Classifier, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no topic groups configured")
	}

	c := &Classifier{subjects: make(map[string]bool, len(subjects))}
	for _, g := range groups {
		t := topic{name: g.Name}
		for _, kw := range g.Keywords {
			re, err := regexp.Compile(`(?i)\b` + kw)
			if err != nil {
				return nil, fmt.Errorf("topic %q: keyword %q: %w", g.Name, kw, err)
			}
			t.patterns = append(t.patterns, re)
		}
		c.topics = append(c.topics, t)
	}
	for _, s := range subjects {
		c.subjects[s] = true
	}
	return c, nil
}

// Classify returns the labels for one post text, in configured topic order.
// A post can carry several labels; one that matches nothing gets Other.
func (c *Classifier) Classify(text string) []string {
	lowered := strings.ToLower(text)
	var labels []string
	for _, t := range c.topics {
		for _, re := range t.patterns {
			if re.MatchString(lowered) {
				labels = append(labels, t.name)
				break
			}
		}
	}
	if len(labels) == 0 {
		return []string{Other}
	}
	return labels
}

// Labeled is a post together with its topic labels.
type Labeled struct {
	archive.Post
	Topics []string
}

// Label classifies every post.
func (c *Classifier) Label(posts []archive.Post) []Labeled {
	labeled := make([]Labeled, len(posts))
	for i, p := range posts {
		labeled[i] = Labeled{Post: p, Topics: c.Classify(p.Text)}
	}
	return labeled
}

// TopicCount is one row of the summary. Percent is relative to the total
// number of posts, rounded to one decimal; labels overlap, so the column
// does not sum to 100.
type TopicCount struct {
	Name    string
	Count   int
	Percent float64
}

// Summary aggregates labels across the archive. SubjectCount counts
// distinct posts that carry at least one subject topic.
type Summary struct {
	Total          int
	Topics         []TopicCount
	SubjectCount   int
	SubjectPercent float64
}

// Summarize tallies labels over the classified posts. Topics that matched
// nothing are omitted, like the report the classifier replaces.
func (c *Classifier) Summarize(labeled []Labeled) *Summary {
	s := &Summary{Total: len(labeled)}
	if s.Total == 0 {
		return s
	}

	counts := make(map[string]int)
	for _, l := range labeled {
		isSubject := false
		for _, name := range l.Topics {
			counts[name]++
			if c.subjects[name] {
				isSubject = true
			}
		}
		if isSubject {
			s.SubjectCount++
		}
	}

	for name, n := range counts {
		s.Topics = append(s.Topics, TopicCount{
			Name:    name,
			Count:   n,
			Percent: percent(n, s.Total),
		})
	}
	sort.Slice(s.Topics, func(i, j int) bool {
		if s.Topics[i].Count != s.Topics[j].Count {
			return s.Topics[i].Count > s.Topics[j].Count
		}
		return s.Topics[i].Name < s.Topics[j].Name
	})

	s.SubjectPercent = percent(s.SubjectCount, s.Total)
	return s
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
