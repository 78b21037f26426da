package match

import (
	"math"
	"sort"
	"strings"

	"github.com/mentormatch/backend/internal/model/user"
)

// Result 表示一个候选人及其匹配分数。
type Result struct {
	User  user.Profile `json:"user"`
	Score float64      `json:"score"`
}

// Similarity 计算两个用户 skills ∪ interests 标签集合的 Jaccard 系数。
// 任一集合为空时返回 0。
func Similarity(a, b user.User) float64 {
	left := tagSet(a)
	right := tagSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for tag := range left {
		if _, ok := right[tag]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	return round(float64(intersection) / float64(union))
}

// Rank scores every candidate of the counterpart role against current and
// orders them by descending score. Ties keep the candidates' input order.
func Rank(current user.User, candidates []user.User) []Result {
	want := current.Role.Counterpart()
	results := make([]Result, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == current.ID || candidate.Role != want {
			continue
		}
		results = append(results, Result{
			User:  candidate.Public(false),
			Score: Similarity(current, candidate),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func tagSet(u user.User) map[string]struct{} {
	set := make(map[string]struct{}, len(u.Skills)+len(u.Interests))
	for _, group := range [][]string{u.Skills, u.Interests} {
		for _, tag := range group {
			if normalized := strings.ToLower(strings.TrimSpace(tag)); normalized != "" {
				set[normalized] = struct{}{}
			}
		}
	}
	return set
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
