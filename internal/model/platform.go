// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// Platform はコンテスト提供元のプラットフォームを表す。
type Platform string

const (
	// PlatformCodeforces はCodeforcesを示す。
	PlatformCodeforces Platform = "Codeforces"
	// PlatformLeetCode はLeetCodeを示す。
	PlatformLeetCode Platform = "LeetCode"
	// PlatformCodeChef はCodeChefを示す。
	PlatformCodeChef Platform = "CodeChef"
)

// AllPlatforms はマージ順序を固定したプラットフォーム一覧。
// 集約結果はこの順で連結してから開始時刻で安定ソートする。
var AllPlatforms = []Platform{PlatformCodeforces, PlatformLeetCode, PlatformCodeChef}

// Slug はURLパスで使用する小文字の識別子を返す。
func (p Platform) Slug() string {
	return strings.ToLower(string(p))
}

// String はfmt.Stringerを実装する。
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform はURLスラッグからPlatformを解決する。大文字小文字は区別しない。
// 未知のスラッグの場合はValidationErrorを返す。
func ParsePlatform(slug string) (Platform, error) {
	s := strings.ToLower(strings.TrimSpace(slug))
	for _, p := range AllPlatforms {
		if p.Slug() == s {
			return p, nil
		}
	}
	return "", NewValidationError(fmt.Sprintf("unknown platform: %q (expected one of codeforces, leetcode, codechef)", slug))
}
