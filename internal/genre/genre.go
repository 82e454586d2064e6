// Package genre guesses a coarse genre for an event from its lead artist and title.
package genre

import "strings"

// Other is returned when nothing matches.
const Other = "other"

type rule struct {
	genre    string
	keywords []string
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{"jazz", []string{"jazz", "ジャズ", "trio", "トリオ", "quartet", "swing", "bebop", "piano", "ピアノ"}},
	{"punk", []string{"punk", "パンク", "hardcore"}},
	{"metal", []string{"metal", "メタル"}},
	{"hiphop", []string{"hip hop", "hiphop", "hip-hop", "rap", "ラップ", "ヒップホップ"}},
	{"electronic", []string{"techno", "house", "edm", "electronic", "dj ", "テクノ"}},
	{"anime", []string{"anime", "アニメ", "アニソン", "声優"}},
	{"folk", []string{"folk", "フォーク", "acoustic", "アコースティック"}},
	{"alternative", []string{"alternative", "オルタナ", "shoegaze", "post-rock"}},
	{"rock", []string{"rock", "ロック", "band", "バンド", "beatles"}},
	{"pop", []string{"pop", "ポップ", "idol", "アイドル", "ワンマン"}},
}

// artists maps known lead artists to their genre ahead of keyword matching.
var artists = map[string]string{
	"scoobie do":      "rock",
	"the collectors":  "rock",
	"鎮座dopeness":      "hiphop",
	"石野卓球":            "electronic",
	"steve bernstein": "jazz",
	"辺見トリオ":           "jazz",
	"fcインティライミ":       "pop",
	"浅香唯":             "pop",
}

// Infer returns the genre for an event, or Other.
func Infer(artist, title string) string {
	if g, ok := artists[strings.ToLower(strings.TrimSpace(artist))]; ok {
		return g
	}

	text := " " + strings.ToLower(artist+" "+title) + " "
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.genre
			}
		}
	}
	return Other
}
